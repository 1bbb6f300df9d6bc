package tgui

// MaxCallbackDataLen is Telegram's callback_data size limit in bytes.
const MaxCallbackDataLen = 64

// ParseModeHTML is the parse mode every builder output uses.
const ParseModeHTML = "HTML"

// MaxMessageLen is Telegram's message text limit.
const MaxMessageLen = 4096
