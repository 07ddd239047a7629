package container

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

func writeString(out *bytes.Buffer, s string) {
	binary.Write(out, binary.LittleEndian, uint16(len(s)))
	out.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", errors.Wrap(ErrSectionSizeMismatch, "task table: truncated string length")
	}
	buf := make([]byte, n)
	if _, err := r.Read(buf); err != nil {
		return "", errors.Wrap(ErrSectionSizeMismatch, "task table: truncated string")
	}
	return string(buf), nil
}

func writeTaskTable(out *bytes.Buffer, tasks []TaskEntry, programs []ProgramInstanceEntry) error {
	binary.Write(out, binary.LittleEndian, uint16(len(tasks)))
	for _, t := range tasks {
		writeString(out, t.Name)
		out.WriteByte(byte(t.Type))
		binary.Write(out, binary.LittleEndian, t.Interval)
		binary.Write(out, binary.LittleEndian, t.Priority)
	}
	binary.Write(out, binary.LittleEndian, uint16(len(programs)))
	for _, p := range programs {
		writeString(out, p.Name)
		binary.Write(out, binary.LittleEndian, p.FunctionID)
		binary.Write(out, binary.LittleEndian, p.TaskRef)
	}
	return nil
}

func readTaskTable(data []byte) ([]TaskEntry, []ProgramInstanceEntry, error) {
	r := bytes.NewReader(data)

	var numTasks uint16
	if err := binary.Read(r, binary.LittleEndian, &numTasks); err != nil {
		return nil, nil, errors.Wrap(ErrSectionSizeMismatch, "task table: truncated count")
	}
	tasks := make([]TaskEntry, numTasks)
	for i := range tasks {
		name, err := readString(r)
		if err != nil {
			return nil, nil, err
		}
		typByte, err := r.ReadByte()
		if err != nil {
			return nil, nil, errors.Wrap(ErrSectionSizeMismatch, "task table: truncated type")
		}
		var interval uint32
		var priority int16
		if err := binary.Read(r, binary.LittleEndian, &interval); err != nil {
			return nil, nil, errors.Wrap(ErrSectionSizeMismatch, "task table: truncated interval")
		}
		if err := binary.Read(r, binary.LittleEndian, &priority); err != nil {
			return nil, nil, errors.Wrap(ErrSectionSizeMismatch, "task table: truncated priority")
		}
		tasks[i] = TaskEntry{Name: name, Type: TaskType(typByte), Interval: interval, Priority: priority}
	}

	var numPrograms uint16
	if err := binary.Read(r, binary.LittleEndian, &numPrograms); err != nil {
		return nil, nil, errors.Wrap(ErrSectionSizeMismatch, "task table: truncated program count")
	}
	programs := make([]ProgramInstanceEntry, numPrograms)
	for i := range programs {
		name, err := readString(r)
		if err != nil {
			return nil, nil, err
		}
		var funcID, taskRef uint16
		if err := binary.Read(r, binary.LittleEndian, &funcID); err != nil {
			return nil, nil, errors.Wrap(ErrSectionSizeMismatch, "task table: truncated function id")
		}
		if err := binary.Read(r, binary.LittleEndian, &taskRef); err != nil {
			return nil, nil, errors.Wrap(ErrSectionSizeMismatch, "task table: truncated task ref")
		}
		programs[i] = ProgramInstanceEntry{Name: name, FunctionID: funcID, TaskRef: taskRef}
	}

	if r.Len() != 0 {
		return nil, nil, errors.Wrap(ErrSectionSizeMismatch, "task table: trailing bytes")
	}
	return tasks, programs, nil
}

// Validate checks the task-table invariants from spec.md §3: every
// program-instance.task_ref resolves, and cyclic tasks have a positive
// interval.
func (c *Container) Validate() error {
	for i, t := range c.Tasks {
		if t.Type == TaskCyclic && t.Interval == 0 {
			return errors.Errorf("container: cyclic task %q (index %d) has non-positive interval", t.Name, i)
		}
	}
	for _, p := range c.Programs {
		if int(p.TaskRef) >= len(c.Tasks) {
			return errors.Errorf("container: program instance %q references unknown task %d", p.Name, p.TaskRef)
		}
		if int(p.FunctionID) >= len(c.Functions) {
			return errors.Errorf("container: program instance %q references unknown function %d", p.Name, p.FunctionID)
		}
	}
	return nil
}
