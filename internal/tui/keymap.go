package tui

// Key bindings handled in handleKey.
const (
	KeyQuit      = "q"
	KeyCtrlC     = "ctrl+c"
	KeyStartStop = " "
	KeyStop      = "s"
	KeyReset     = "r"
	KeyPomodoro  = "p"
)
