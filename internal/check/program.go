package check

import (
	"bytes"
	"fmt"
	"os/exec"
	"sync"
	"syscall"

	"github.com/ocochard/monit/internal/clock"
	"github.com/ocochard/monit/internal/event"
	"github.com/ocochard/monit/internal/model"
)

// programRun tracks one in-flight Program service invocation across
// cycles, grounded on original_source/src/spawn.c's child bookkeeping.
type programRun struct {
	mu       sync.Mutex
	cmd      *exec.Cmd
	stdout   bytes.Buffer
	stderr   bytes.Buffer
	started  int64
	done     bool
	exitCode int
	waitErr  error
}

const programOutputCapBytes = 1024 // spec.md §4.F Program: 1 KiB total capture

// Program evaluates a Program service, spec.md §4.F "Program": manages
// one child process across cycles, killing it on timeout, evaluating
// exit-status rules once it completes, then launching the next
// invocation.
func (c *Checker) Program(svc *model.Service) []event.Outcome {
	if c.skip(svc) {
		return nil
	}
	if c.programs == nil {
		c.programs = map[model.ID]*programRun{}
	}
	run, running := c.programs[svc.ID]

	if running {
		run.mu.Lock()
		defer run.mu.Unlock()
		if !run.done {
			elapsed := clock.NowMillis(c.Clock)/1000 - run.started
			if svc.Restart != nil && int(elapsed) > svc.Restart.Timeout {
				_ = run.cmd.Process.Signal(syscall.SIGKILL)
			}
			return nil // still running (or just killed, awaiting reap), defer evaluation
		}
	}

	var out []event.Outcome
	if running {
		out = append(out, c.evalProgramRules(svc, run)...)
		delete(c.programs, svc.ID)
	}

	out = append(out, c.launchProgram(svc)...)
	return out
}

func (c *Checker) evalProgramRules(svc *model.Service, run *programRun) []event.Outcome {
	info := &model.ProgramInfo{
		Started:    run.started,
		ExitStatus: run.exitCode,
		Latched:    true,
	}
	info.Stdout = capBytes(run.stdout.Bytes(), programOutputCapBytes)
	info.Stderr = capBytes(run.stderr.Bytes(), programOutputCapBytes-len(info.Stdout))

	prevInfo, hadPrev := svc.Info.(*model.ProgramInfo)
	svc.Info = info

	var out []event.Outcome
	for _, rule := range svc.ProgramRules {
		state := model.StateSucceeded
		if rule.Op.Match(float64(run.exitCode), float64(rule.Expected)) {
			state = model.StateFailed
		}
		if hadPrev && prevInfo.ExitStatus != run.exitCode {
			out = append(out, c.post(svc, model.KindStatus, model.StateChanged, rule.Action, fmt.Sprintf("exit status changed to %d", run.exitCode)))
		}
		out = append(out, c.post(svc, model.KindStatus, state, rule.Action, fmt.Sprintf("exit status %d", run.exitCode)))
	}
	return out
}

func (c *Checker) launchProgram(svc *model.Service) []event.Outcome {
	if svc.Start == nil || len(svc.Start.Argv) == 0 {
		return nil
	}
	cmd := exec.Command(svc.Start.Argv[0], svc.Start.Argv[1:]...)
	run := &programRun{cmd: cmd, started: clock.NowMillis(c.Clock) / 1000}
	cmd.Stdout = &run.stdout
	cmd.Stderr = &run.stderr

	if err := cmd.Start(); err != nil {
		return []event.Outcome{c.post(svc, model.KindExec, model.StateFailed, model.DefaultEventAction(), fmt.Sprintf("failed to launch program: %v", err))}
	}
	svc.ProgramRunning = true
	svc.ProgramStarted = run.started
	c.programs[svc.ID] = run

	go func() {
		err := cmd.Wait()
		run.mu.Lock()
		defer run.mu.Unlock()
		run.done = true
		run.waitErr = err
		if exitErr, ok := err.(*exec.ExitError); ok {
			run.exitCode = exitErr.ExitCode()
		} else if err == nil {
			run.exitCode = 0
		} else {
			run.exitCode = -1
		}
	}()
	return nil
}

func capBytes(b []byte, max int) string {
	if len(b) > max {
		b = b[:max]
	}
	return string(b)
}
