// Package logx configures jobdesk's structured logging.
//
// logx.Logger is a small wrapper on top of zerolog:
//   - console output stays readable (short timestamp and caller)
//   - file output is JSON
//   - an optional chat sink mirrors warnings to an operator chat, rate limited
package logx
