// Package version хранит имя и версию сборки для команды version и логов.
package version

// Name и Version переопределяются при сборке через -ldflags "-X".
var (
	Name    = "sessionconv"
	Version = "0.3.0"
)
