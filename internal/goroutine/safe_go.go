package goroutine

import (
	"runtime/debug"

	"github.com/ignatzorin/skillhire-backend/internal/logger"
)

// SafeGo запускает fn в отдельной горутине. Panic логируется и не роняет процесс.
func SafeGo(fn func()) {
	go run("", fn)
}

// SafeGoNamed то же, что SafeGo, но подписывает panic именем задачи.
func SafeGoNamed(task string, fn func()) {
	go run(task, fn)
}

func run(task string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			entry := logger.Log.WithField("stack", string(debug.Stack()))
			if task != "" {
				entry = entry.WithField("task", task)
			}
			entry.Errorf("panic в горутине: %v", r)
		}
	}()
	fn()
}
