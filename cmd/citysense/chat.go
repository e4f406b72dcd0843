package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	// Packages
	citysense "github.com/lizzyg/citysense"
	moderr "github.com/lizzyg/citysense/errors"
	term "golang.org/x/term"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type ChatCmd struct{}

type AskCmd struct {
	Text []string `arg:"" help:"Question to ask"`
}

var exitWords = map[string]bool{"exit": true, "quit": true, "bye": true}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

// Run holds one session for the life of the process. Lookup failures are
// shown inline; only a configuration error ends the loop early.
func (cmd *ChatCmd) Run(g *Globals) error {
	session := citysense.NewSession(citysense.ConfigRunnerFactory(g.cfg, g.agentOptions()...))
	if err := session.Start(); err != nil {
		return err
	}
	defer session.Reset()

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	fmt.Println(citysense.WelcomeMessage)

	in := bufio.NewScanner(os.Stdin)
	for {
		if interactive {
			fmt.Print("\n> ")
		}
		if !in.Scan() {
			if err := in.Err(); err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			return nil
		}
		text := strings.TrimSpace(in.Text())
		if text == "" {
			continue
		}
		if exitWords[strings.ToLower(text)] {
			return nil
		}

		reply, err := session.Send(g.ctx, text)
		switch {
		case errors.Is(err, moderr.ErrConfig):
			return err
		case g.ctx.Err() != nil:
			return nil
		case err != nil:
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		default:
			fmt.Println(reply)
		}
	}
}

func (cmd *AskCmd) Run(g *Globals) error {
	agent, err := citysense.NewAgent(g.cfg, g.agentOptions()...)
	if err != nil {
		return err
	}
	res, err := agent.Run(g.ctx, citysense.Transcript{citysense.UserMessage(strings.Join(cmd.Text, " "))})
	if err != nil {
		return err
	}
	fmt.Println(res.FinalOutput)
	return nil
}
