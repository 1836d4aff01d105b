// Package hotkey registers a global keyboard shortcut through gohook. The
// listener runs on its own goroutine for the life of the process; it is
// never joined, process exit reclaims it.
package hotkey

import (
	"fmt"
	"strings"

	hook "github.com/robotn/gohook"
)

// DefaultCombo stops the recording like the classic capture tools do.
var DefaultCombo = []string{"shift", "f12"}

// ParseCombo splits a "+"-separated combo string ("shift+f12") into the key
// list gohook expects.
func ParseCombo(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultCombo, nil
	}

	parts := strings.Split(strings.ToLower(s), "+")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("hotkey: empty key in combo %q", s)
		}
		keys = append(keys, p)
	}
	return keys, nil
}

// Listen registers fn for the key combo and starts the global event hook on
// a background goroutine. fn runs on the hook goroutine; keep it tiny (the
// recorder just flips the stop flag).
func Listen(combo []string, fn func()) {
	hook.Register(hook.KeyDown, combo, func(hook.Event) {
		fn()
	})

	go func() {
		s := hook.Start()
		<-hook.Process(s)
	}()
}
