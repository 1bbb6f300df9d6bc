// Package rotation keeps the per-workspace duty roster and drives its two
// timers: a short-period reminder of the current duty holder and a
// long-period advance to the next one.
//
// Timers are process-wide. Each tick fans out over every workspace that has
// an announcement target; one workspace failing is logged and does not stop
// the others. Ticks are ignored until MarkReady is called.
package rotation
