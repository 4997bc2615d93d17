package timer

import (
	"container/heap"
	"sync"
	"time"
)

// Task 一个延时任务，Interval>0 时周期执行
type Task struct {
	ID       int64
	fireAt   time.Time
	interval time.Duration
	callback func()
	index    int
}

// taskHeap 按触发时间排序的小顶堆
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	return h[i].fireAt.Before(h[j].fireAt)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x interface{}) {
	task := x.(*Task)
	task.index = len(*h)
	*h = append(*h, task)
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	task := old[n-1]
	task.index = -1
	*h = old[:n-1]
	return task
}

// TimerManager 管理延时任务，回调在独立goroutine中执行
type TimerManager struct {
	tasks    taskHeap
	mutex    sync.Mutex
	nextID   int64
	fired    chan *Task
	stopOnce sync.Once
	stopChan chan struct{}
}

func NewTimerManager() *TimerManager {
	m := &TimerManager{
		tasks:    make(taskHeap, 0),
		fired:    make(chan *Task, 1000),
		nextID:   1,
		stopChan: make(chan struct{}),
	}
	heap.Init(&m.tasks)
	go m.run()
	return m
}

// AddTimer 注册一个延时任务，返回任务ID用于取消
func (m *TimerManager) AddTimer(delay, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task := &Task{
		ID:       m.nextID,
		fireAt:   time.Now().Add(delay),
		interval: interval,
		callback: callback,
	}
	m.nextID++

	heap.Push(&m.tasks, task)
	return task.ID
}

// RemoveTimer 取消一个尚未触发的任务
func (m *TimerManager) RemoveTimer(id int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, task := range m.tasks {
		if task.ID == id {
			heap.Remove(&m.tasks, i)
			break
		}
	}
}

// Stop 停止调度循环，已注册的任务不再触发
func (m *TimerManager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
}

func (m *TimerManager) run() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.collect()
		case task := <-m.fired:
			go task.callback()
		case <-m.stopChan:
			return
		}
	}
}

// collect 弹出所有到期任务，周期任务重新入堆
func (m *TimerManager) collect() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := time.Now()
	for m.tasks.Len() > 0 {
		task := m.tasks[0]
		if task.fireAt.After(now) {
			break
		}

		heap.Pop(&m.tasks)
		m.fired <- task

		if task.interval > 0 {
			task.fireAt = now.Add(task.interval)
			heap.Push(&m.tasks, task)
		}
	}
}
