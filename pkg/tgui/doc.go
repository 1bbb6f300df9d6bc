// Package tgui provides small Telegram UI helpers:
//   - inline keyboard builders
//   - callback data helpers (scope:action:payload)
//   - an HTML-safe message builder used for cards, lists and the job board
package tgui
