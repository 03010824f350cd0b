package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

var (
	// 边框样式
	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	// 买方（绿色）
	bidStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	// 卖方（红色）
	askStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	// 提示（灰色）
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Render 把事件渲染为终端文本块
func Render(ev *Event) string {
	if ev == nil {
		return ""
	}
	title, lines := describe(ev)
	return borderStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(title),
		strings.Join(lines, "\n"),
	))
}

// Log 以结构化字段写日志
func Log(entry *logrus.Entry, ev *Event) {
	if entry == nil {
		entry = logrus.NewEntry(logrus.StandardLogger())
	}
	if ev == nil {
		return
	}
	e := entry.WithField("event", string(ev.Kind))
	switch ev.Kind {
	case EventExchangeError:
		e.WithField("code", ev.Error.Code).Errorf("Error: %s", ev.Error.Message)
	case EventOrder:
		o := ev.Order
		e.WithFields(logrus.Fields{
			"order_id":   o.OrderID,
			"instrument": o.Instrument,
			"type":       o.OrderType,
			"state":      o.OrderState,
			"direction":  o.Direction,
			"amount":     o.Amount.String(),
			"price":      o.Price.String(),
		}).Info("订单")
	case EventCancellation:
		e.WithField("order_id", ev.CancelledOrderID).Info("订单已撤销")
	case EventOpenOrders:
		e.WithField("count", len(ev.OpenOrders)).Info("挂单")
		for _, o := range ev.OpenOrders {
			e.Debug(orderLine(&o, true))
		}
	case EventPositions:
		e.WithField("count", len(ev.Positions)).Info("持仓")
		for _, p := range ev.Positions {
			e.Debug(positionLine(&p))
		}
	case EventOrderBook:
		b := ev.OrderBook
		e.WithFields(logrus.Fields{
			"instrument": b.Instrument,
			"best_bid":   b.BestBidPrice.String(),
			"best_ask":   b.BestAskPrice.String(),
			"mark":       b.MarkPrice.String(),
			"index":      b.IndexPrice.String(),
			"bids":       len(b.Bids),
			"asks":       len(b.Asks),
		}).Info("订单簿")
	default:
		e.Warn("Unhandled JSON structure in result")
	}
}

func describe(ev *Event) (string, []string) {
	switch ev.Kind {
	case EventExchangeError:
		return "交易所错误", []string{askStyle.Render(fmt.Sprintf("Error: %s, Code: %d", ev.Error.Message, ev.Error.Code))}
	case EventOrder:
		return "订单", []string{orderLine(ev.Order, false)}
	case EventCancellation:
		return "撤单", []string{"Cancelled Order ID: " + ev.CancelledOrderID}
	case EventOpenOrders:
		lines := []string{fmt.Sprintf("Number of Open Orders: %d", len(ev.OpenOrders))}
		for i := range ev.OpenOrders {
			lines = append(lines, orderLine(&ev.OpenOrders[i], true))
		}
		return "挂单", lines
	case EventPositions:
		lines := make([]string, 0, len(ev.Positions))
		for i := range ev.Positions {
			lines = append(lines, positionLine(&ev.Positions[i]))
		}
		if len(lines) == 0 {
			lines = append(lines, mutedStyle.Render("无持仓"))
		}
		return "当前持仓", lines
	case EventOrderBook:
		return "订单簿", bookLines(ev.OrderBook)
	default:
		return "未知响应", []string{mutedStyle.Render("Unhandled JSON structure in result.")}
	}
}

func orderLine(o *Order, withFilled bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Order ID: %s, Instrument: %s, Type: %s, State: %s, Direction: %s, Amount: %s, ",
		o.OrderID, o.Instrument, o.OrderType, o.OrderState, o.Direction, o.Amount.String())
	if withFilled {
		fmt.Fprintf(&sb, "Filled Amount: %s, ", o.FilledAmount.String())
	}
	fmt.Fprintf(&sb, "Price: %s, Time in Force: %s, Creation UTC Timestamp: %s",
		o.Price.String(), o.TimeInForce, FormatTimestamp(o.CreationTimestamp))
	return sb.String()
}

func positionLine(p *Position) string {
	return fmt.Sprintf("Instrument: %s, Direction: %s, Size: %s, Mark Price: %s, Average Price: %s, "+
		"Floating P&L: %s, Total P&L: %s, Leverage: %s, Maintenance Margin: %s, Initial Margin: %s, Open Orders Margin: %s",
		p.Instrument, p.Direction, p.Size.String(), p.MarkPrice.String(), p.AveragePrice.String(),
		p.FloatingProfitLoss.String(), p.TotalProfitLoss.String(), p.Leverage.String(),
		p.MaintenanceMargin.String(), p.InitialMargin.String(), p.OpenOrdersMargin.String())
}

func bookLines(b *OrderBook) []string {
	lines := []string{
		"Instrument: " + b.Instrument,
		fmt.Sprintf("Best Bid Price: %s, Best Ask Price: %s", b.BestBidPrice.String(), b.BestAskPrice.String()),
		fmt.Sprintf("Mark Price: %s", b.MarkPrice.String()),
		fmt.Sprintf("Index Price: %s", b.IndexPrice.String()),
		"",
		"Bids:",
	}
	for _, lv := range b.Bids {
		lines = append(lines, bidStyle.Render(fmt.Sprintf("Price: %s, Amount: %s", lv.Price.String(), lv.Amount.String())))
	}
	lines = append(lines, "", "Asks:")
	for _, lv := range b.Asks {
		lines = append(lines, askStyle.Render(fmt.Sprintf("Price: %s, Amount: %s", lv.Price.String(), lv.Amount.String())))
	}
	return lines
}
