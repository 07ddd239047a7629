package vm

import (
	"sort"

	"github.com/scanloop/stplc/internal/container"
)

// taskState tracks the one piece of mutable scheduling state a task needs
// beyond its static container.TaskEntry: when a cyclic task is next due, and
// whether an event task's flag has fired since the last round.
type taskState struct {
	index      int
	entry      container.TaskEntry
	nextDue    uint64
	eventFired bool
}

// instanceState is one program instance's persistent variable storage,
// reused across rounds so retained values survive (spec.md §6 "Persisted
// state between rounds: the variable-table buffer").
type instanceState struct {
	entry container.ProgramInstanceEntry
	vars  []uint64
}

// Scheduler drives a VM's task table: each call to RunRound executes every
// due task's program instances once, in the deterministic order spec.md §4.3
// requires (priority desc, task index asc, registration order within a
// task).
type Scheduler struct {
	vm        *VM
	container *container.Container
	tasks     []*taskState
	instances []*instanceState
}

// NewScheduler builds a Scheduler over vm's container, allocating one
// persistent variable-table region per program instance sized to its bound
// function's num_locals (spec.md §5: "each program instance has its own
// variable table region").
func NewScheduler(vm *VM) *Scheduler {
	c := vm.container
	s := &Scheduler{vm: vm, container: c}

	for i, t := range c.Tasks {
		s.tasks = append(s.tasks, &taskState{index: i, entry: t})
	}
	for _, p := range c.Programs {
		numLocals := 0
		if int(p.FunctionID) < len(c.Functions) {
			numLocals = int(c.Functions[p.FunctionID].NumLocals)
		}
		s.instances = append(s.instances, &instanceState{entry: p, vars: make([]uint64, numLocals)})
	}
	return s
}

// SetEvent marks the named event task as fired for the next RunRound. It is
// the host's way of feeding an external event into an Event task (spec.md
// §4.3: "present in the ready list only when an external event flag has
// been set since the last round").
func (s *Scheduler) SetEvent(taskName string) {
	for _, t := range s.tasks {
		if t.entry.Name == taskName && t.entry.Type == container.TaskEvent {
			t.eventFired = true
			return
		}
	}
}

// InstanceVars returns the persistent variable-table region for the named
// program instance, letting a caller (or test) observe state between
// rounds.
func (s *Scheduler) InstanceVars(name string) ([]uint64, bool) {
	for _, inst := range s.instances {
		if inst.entry.Name == name {
			return inst.vars, true
		}
	}
	return nil, false
}

// RunRound scans the task table for due tasks, runs each one's program
// instances to completion in order, and reschedules cyclic tasks. now is
// the caller's monotonic clock, in the same units as TaskEntry.Interval
// (milliseconds per spec.md §3). A trap aborts the round immediately,
// discarding the remaining ready list, and leaves the VM Faulted (spec.md
// §4.3 "Cancellation").
func (s *Scheduler) RunRound(now uint64) *Trap {
	ready := s.readyTasks(now)
	sort.SliceStable(ready, func(i, j int) bool {
		if ready[i].entry.Priority != ready[j].entry.Priority {
			return ready[i].entry.Priority > ready[j].entry.Priority
		}
		return ready[i].index < ready[j].index
	})

	for _, t := range ready {
		for _, inst := range s.instances {
			if int(inst.entry.TaskRef) != t.index {
				continue
			}
			if tr := s.vm.Execute(inst.entry.FunctionID, inst.vars); tr != nil {
				return tr
			}
		}
		if t.entry.Type == container.TaskCyclic {
			// Catch-up is at most one period: a single missed tick does not
			// accumulate (spec.md §4.3).
			t.nextDue += uint64(t.entry.Interval)
			if t.nextDue <= now {
				t.nextDue = now + uint64(t.entry.Interval)
			}
		}
		t.eventFired = false
	}
	return nil
}

func (s *Scheduler) readyTasks(now uint64) []*taskState {
	var ready []*taskState
	for _, t := range s.tasks {
		switch t.entry.Type {
		case container.TaskCyclic:
			if now >= t.nextDue {
				ready = append(ready, t)
			}
		case container.TaskEvent:
			if t.eventFired {
				ready = append(ready, t)
			}
		case container.TaskFreewheeling:
			ready = append(ready, t)
		}
	}
	return ready
}
