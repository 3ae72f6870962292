package console

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// timeLayout is the accepted format for the time override command.
const timeLayout = "2006-01-02 15:04:05"

// Actions binds console commands to the running device. Any nil action
// reports the command as unavailable.
type Actions struct {
	Status      func() string
	Fetch       func()
	ResetKey    func()
	SetTime     func(time.Time)
	PressButton func()
	SetMotion   func(bool)
	SetPot      func(int)
}

// Console reads diagnostic commands line by line and dispatches them.
// It is meant to run against stdin but takes any reader for testing.
type Console struct {
	in      io.Reader
	actions Actions
	log     zerolog.Logger
}

func New(in io.Reader, actions Actions, log zerolog.Logger) *Console {
	return &Console{
		in:      in,
		actions: actions,
		log:     log.With().Str("component", "console").Logger(),
	}
}

// Run consumes the input until it is exhausted or the context ends.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			c.dispatch(line)
		}
	}
}

func (c *Console) dispatch(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		c.printHelp()
	case "status":
		if c.actions.Status == nil {
			c.unavailable(cmd)
			return
		}
		c.log.Info().Msg(c.actions.Status())
	case "fetch":
		if c.actions.Fetch == nil {
			c.unavailable(cmd)
			return
		}
		c.log.Info().Msg("Schedule fetch requested")
		c.actions.Fetch()
	case "reset_key":
		if c.actions.ResetKey == nil {
			c.unavailable(cmd)
			return
		}
		c.log.Info().Msg("Clearing stored credential")
		c.actions.ResetKey()
	case "time":
		c.handleTime(args)
	case "button":
		if c.actions.PressButton == nil {
			c.unavailable(cmd)
			return
		}
		c.log.Info().Msg("Button press injected")
		c.actions.PressButton()
	case "motion":
		c.handleMotion(args)
	case "pot":
		c.handlePot(args)
	default:
		c.log.Warn().Str("command", cmd).Msg("Unknown command, try 'help'")
	}
}

func (c *Console) handleTime(args []string) {
	if c.actions.SetTime == nil {
		c.unavailable("time")
		return
	}
	if len(args) != 2 {
		c.log.Warn().Msg("Usage: time YYYY-MM-DD HH:MM:SS")
		return
	}
	t, err := time.Parse(timeLayout, args[0]+" "+args[1])
	if err != nil {
		c.log.Warn().Err(err).Msg("Invalid time value")
		return
	}
	t = t.UTC()
	c.log.Info().Time("now", t).Msg("Clock override applied")
	c.actions.SetTime(t)
}

func (c *Console) handleMotion(args []string) {
	if c.actions.SetMotion == nil {
		c.unavailable("motion")
		return
	}
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		c.log.Warn().Msg("Usage: motion on|off")
		return
	}
	active := args[0] == "on"
	c.log.Info().Bool("active", active).Msg("Motion input set")
	c.actions.SetMotion(active)
}

func (c *Console) handlePot(args []string) {
	if c.actions.SetPot == nil {
		c.unavailable("pot")
		return
	}
	if len(args) != 1 {
		c.log.Warn().Msg("Usage: pot <raw>")
		return
	}
	raw, err := strconv.Atoi(args[0])
	if err != nil || raw < 0 {
		c.log.Warn().Str("value", args[0]).Msg("Pot value must be a non-negative integer")
		return
	}
	c.log.Info().Int("raw", raw).Msg("Pot input set")
	c.actions.SetPot(raw)
}

func (c *Console) unavailable(cmd string) {
	c.log.Warn().Str("command", cmd).Msg("Command not available")
}

func (c *Console) printHelp() {
	c.log.Info().Msg("Commands: status | fetch | reset_key | time YYYY-MM-DD HH:MM:SS | button | motion on|off | pot <raw> | help")
}
