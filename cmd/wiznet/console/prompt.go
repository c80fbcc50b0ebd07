package console

import (
	"strings"

	"github.com/chzyer/readline"
)

const (
	Yes = "y"
	No  = "n"
)

// YesOrNo prompts until the answer is one of y/n.
func YesOrNo(question string) (string, error) {
	var prompt strings.Builder
	prompt.WriteString(question)
	prompt.WriteString(" [Y/n]:")
	rl, err := readline.New(prompt.String())
	if err != nil {
		return "", err
	}
	defer func() { _ = rl.Close() }()
	for {
		answer, err := rl.Readline()
		if err != nil {
			return "", err
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		switch answer {
		case "", Yes:
			return Yes, nil
		case No:
			return No, nil
		}
	}
}
