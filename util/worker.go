package util

import (
	"sync"

	"github.com/mohitkumar/forge/logger"
	"go.uber.org/zap"
)

type Task any

// Worker is a bounded single-goroutine task loop. Everything sent through
// Sender() is handled by one goroutine in arrival order, which makes it the
// serialization point for anything that must not interleave.
type Worker struct {
	name     string
	stop     chan struct{}
	done     chan struct{}
	wg       *sync.WaitGroup
	handler  func(Task) error
	taskChan chan Task
}

func NewWorker(name string, wg *sync.WaitGroup, handler func(Task) error, capacity int) *Worker {
	return &Worker{
		taskChan: make(chan Task, capacity),
		name:     name,
		wg:       wg,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		handler:  handler,
	}
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer close(w.done)
		for {
			select {
			case task := <-w.taskChan:
				if err := w.handler(task); err != nil {
					logger.Error("error in executing task in worker", zap.String("worker", w.name), zap.Error(err))
				}
			case <-w.stop:
				// drain whatever was queued before the stop signal
				for {
					select {
					case task := <-w.taskChan:
						if err := w.handler(task); err != nil {
							logger.Error("error in executing task in worker", zap.String("worker", w.name), zap.Error(err))
						}
					default:
						logger.Debug("stopping worker", zap.String("worker", w.name))
						return
					}
				}
			}
		}
	}()
}

func (w *Worker) Sender() chan<- Task {
	return w.taskChan
}

// Stop signals the loop and blocks until queued tasks are drained.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}
