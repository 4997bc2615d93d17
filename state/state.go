package state

import (
	"errors"
	"sync"
)

// 状态机接口
type StateMachine interface {
	ChangeState(state State) error
	GetCurrentState() State
	AddTransition(from State, to State, condition func() bool) error
}

// 状态接口
type State interface {
	OnEnter()
	OnExit()
	OnUpdate()
	GetID() string
	HandleAction(player Player, actionData []byte) error
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// 基础状态机实现
type BaseStateMachine struct {
	currentState State
	transitions  map[string]map[string]func() bool // fromState -> toState -> condition
	mutex        sync.RWMutex
}

func NewBaseStateMachine(initialState State) *BaseStateMachine {
	machine := &BaseStateMachine{
		currentState: initialState,
		transitions:  make(map[string]map[string]func() bool),
	}
	initialState.OnEnter()
	return machine
}

func (sm *BaseStateMachine) ChangeState(newState State) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	currentID := sm.currentState.GetID()
	newID := newState.GetID()

	// 检查是否有转换条件
	if conditions, exists := sm.transitions[currentID]; exists {
		if condition, exists := conditions[newID]; exists {
			if condition != nil && !condition() {
				return ErrTransitionNotAllowed
			}
		}
	}

	sm.currentState.OnExit()
	sm.currentState = newState
	sm.currentState.OnEnter()

	return nil
}

func (sm *BaseStateMachine) GetCurrentState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

func (sm *BaseStateMachine) AddTransition(from State, to State, condition func() bool) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	fromID := from.GetID()
	toID := to.GetID()

	if _, exists := sm.transitions[fromID]; !exists {
		sm.transitions[fromID] = make(map[string]func() bool)
	}

	sm.transitions[fromID][toID] = condition
	return nil
}

// 比赛状态基础结构
type MatchStateBase struct {
	ID    string
	Match MatchContext
}

func (s *MatchStateBase) GetID() string {
	return s.ID
}

func (s *MatchStateBase) OnEnter() {
	// 默认实现
}

func (s *MatchStateBase) OnExit() {
	// 默认实现
}

func (s *MatchStateBase) OnUpdate() {
	// 默认实现
}

func (s *MatchStateBase) HandleAction(player Player, actionData []byte) error {
	// 默认实现，具体状态可以覆盖此方法
	return nil
}
