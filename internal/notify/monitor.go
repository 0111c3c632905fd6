package notify

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/example/barshell/internal/logging"
)

const (
	// maxLineBytes bounds a single trace line; longer lines are skipped.
	maxLineBytes = 1 << 20
	killGrace    = 5 * time.Second
)

var (
	// ErrMonitorUnavailable means the trace executable could not be found.
	// The monitor stays inert and is not restarted.
	ErrMonitorUnavailable = errors.New("notification monitor unavailable")
	// ErrMonitorExited means the trace process ended on its own.
	ErrMonitorExited = errors.New("notification monitor exited")

	errLineTooLong = errors.New("trace line too long")
)

// Dispatcher schedules fn on the UI goroutine. It must not block and must
// run callbacks in submission order.
type Dispatcher func(fn func())

type traceProcess interface {
	Stdout() io.Reader
	Wait() error
	Terminate() error
}

type launchFunc func(argv []string) (traceProcess, error)

// Monitor turns the dbus-monitor trace into Events delivered on the UI
// goroutine.
type Monitor struct {
	command  []string
	limits   Limits
	emitter  *Emitter
	dispatch Dispatcher
	deliver  func(Event)
	launch   launchFunc
}

// NewMonitor wires a trace command to deliver. A nil dispatch delivers on the
// reading goroutine.
func NewMonitor(command []string, limits Limits, emitter *Emitter, dispatch Dispatcher, deliver func(Event)) *Monitor {
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	if emitter == nil {
		emitter = NewEmitter(nil, 0)
	}
	return &Monitor{
		command:  command,
		limits:   limits,
		emitter:  emitter,
		dispatch: dispatch,
		deliver:  deliver,
		launch:   launchTraceProcess,
	}
}

// Run starts the trace process and parses its output until it exits or ctx
// is cancelled. Cancellation terminates the process and drops the frame in
// flight.
func (m *Monitor) Run(ctx context.Context) error {
	if len(m.command) == 0 {
		return fmt.Errorf("%w: empty command", ErrMonitorUnavailable)
	}
	name := m.command[0]

	proc, err := m.launch(m.command)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			logging.Errorf("notifications disabled: %s not found", name)
			return fmt.Errorf("%w: %v", ErrMonitorUnavailable, err)
		}
		return fmt.Errorf("start %s: %w", name, err)
	}
	logging.Debugf("monitor: started %v", m.command)

	stop := context.AfterFunc(ctx, func() {
		if err := proc.Terminate(); err != nil {
			logging.Warnf("monitor: terminate %s: %v", name, err)
		}
	})
	defer stop()

	readErr := m.consume(ctx, proc.Stdout())
	waitErr := proc.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if readErr != nil {
		return readErr
	}
	if waitErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrMonitorExited, name, waitErr)
	}
	return fmt.Errorf("%w: %s", ErrMonitorExited, name)
}

// Replay parses a captured trace through the same path as Run. The final
// frame is flushed at end of input.
func (m *Monitor) Replay(ctx context.Context, r io.Reader) error {
	return m.consume(ctx, r)
}

func (m *Monitor) consume(ctx context.Context, r io.Reader) error {
	br := bufio.NewReaderSize(r, 64*1024)
	state := NewState(m.limits)
	lines := 0

	for {
		line, err := readLine(br, maxLineBytes)
		if errors.Is(err, errLineTooLong) {
			logging.Warnf("monitor: skipped trace line longer than %d bytes", maxLineBytes)
			continue
		}
		if line != "" || err == nil {
			lines++
			var done *Frame
			state, done = Step(state, line)
			m.emit(done)
		}

		if errors.Is(err, io.EOF) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.emit(state.Finish())
			logging.Debugf("monitor: end of trace after %d lines", lines)
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read trace: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (m *Monitor) emit(f *Frame) {
	if f == nil {
		return
	}
	ev, ok := m.emitter.Emit(f)
	if !ok {
		logging.Debugf("monitor: ignored notification from %q", f.AppName)
		return
	}
	logging.Debugf("monitor: %s %q key=%q", ev.AppName, logging.Preview(ev.Summary, 60), ev.Key)
	if m.deliver == nil {
		return
	}
	deliver := m.deliver
	m.dispatch(func() { deliver(ev) })
}

// readLine returns one line including its newline. Lines beyond limit are
// consumed and reported as errLineTooLong.
func readLine(r *bufio.Reader, limit int) (string, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > limit {
				tooLong, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if tooLong {
			if err == nil {
				return "", errLineTooLong
			}
			return "", err
		}
		return string(buf), err
	}
}

type execTrace struct {
	cmd    *exec.Cmd
	stdout io.Reader

	once sync.Once
	done chan struct{}
}

func launchTraceProcess(argv []string) (traceProcess, error) {
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(path, argv[1:]...)
	cmd.Env = os.Environ()
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execTrace{cmd: cmd, stdout: stdout, done: make(chan struct{})}, nil
}

func (p *execTrace) Stdout() io.Reader { return p.stdout }

func (p *execTrace) Wait() error {
	defer p.once.Do(func() { close(p.done) })
	return p.cmd.Wait()
}

func (p *execTrace) Terminate() error {
	if err := terminateProcess(p.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	time.AfterFunc(killGrace, func() {
		select {
		case <-p.done:
		default:
			_ = p.cmd.Process.Kill()
		}
	})
	return nil
}
