package write_buffer

import (
	"sync"
)

const DefaultCapacity = 20
const DefaultMaxSize = 1000

type WriteBuffer[ValueType any] interface {
	Add(value ValueType)
	Drain() []ValueType
	Len() int
}

// WriteBufferImpl accumulates values from concurrent producers. Once the number
// of buffered values meets the capacity, every Add calls onFull so the owner
// can drain it. Past maxSize the oldest value is discarded.
type WriteBufferImpl[ValueType any] struct {
	writeQueue []ValueType
	capacity   int
	maxSize    int
	onFull     func()
	onDrop     func(dropped ValueType)
	mu         sync.Mutex
}

func NewWriteBufferImpl[ValueType any](
	capacity int,
	maxSize int,
	onFull func(),
	onDrop func(dropped ValueType),
) *WriteBufferImpl[ValueType] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if maxSize < capacity {
		maxSize = capacity
	}
	return &WriteBufferImpl[ValueType]{
		writeQueue: make([]ValueType, 0, capacity),
		capacity:   capacity,
		maxSize:    maxSize,
		onFull:     onFull,
		onDrop:     onDrop,
	}
}

func (wb *WriteBufferImpl[ValueType]) Add(value ValueType) {
	var dropped []ValueType
	wb.mu.Lock()
	wb.writeQueue = append(wb.writeQueue, value)
	if overflow := len(wb.writeQueue) - wb.maxSize; overflow > 0 {
		dropped = make([]ValueType, overflow)
		copy(dropped, wb.writeQueue[:overflow])
		wb.writeQueue = append(wb.writeQueue[:0], wb.writeQueue[overflow:]...)
	}
	size := len(wb.writeQueue)
	wb.mu.Unlock()

	if wb.onDrop != nil {
		for _, d := range dropped {
			wb.onDrop(d)
		}
	}
	if size >= wb.capacity && wb.onFull != nil {
		wb.onFull()
	}
}

// Drain hands the buffered values to the caller and leaves the buffer empty.
func (wb *WriteBufferImpl[ValueType]) Drain() []ValueType {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	if len(wb.writeQueue) == 0 {
		return nil
	}
	snapshot := wb.writeQueue
	wb.writeQueue = make([]ValueType, 0, wb.capacity)
	return snapshot
}

func (wb *WriteBufferImpl[ValueType]) Len() int {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return len(wb.writeQueue)
}
