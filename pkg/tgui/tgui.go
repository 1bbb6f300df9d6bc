package tgui

import (
	tele "gopkg.in/telebot.v4"
)

// Inline builds an inline keyboard row by row.
type Inline struct {
	rm   *tele.ReplyMarkup
	rows []tele.Row
}

func NewInline() *Inline {
	return &Inline{rm: &tele.ReplyMarkup{}}
}

// Row appends a row. Empty rows are skipped.
func (i *Inline) Row(btn ...tele.Btn) *Inline {
	if len(btn) == 0 {
		return i
	}
	i.rows = append(i.rows, i.rm.Row(btn...))
	i.rm.Inline(i.rows...)
	return i
}

// Rows reports how many rows were added.
func (i *Inline) Rows() int { return len(i.rows) }

func (i *Inline) Markup() *tele.ReplyMarkup { return i.rm }

// Btn creates a callback button with raw callback data. Build data with Data.
func Btn(text, data string) tele.Btn {
	return tele.Btn{Text: text, Data: data}
}
