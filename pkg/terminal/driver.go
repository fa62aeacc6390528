package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2"
	surveyterm "github.com/AlecAivazis/survey/v2/terminal"
)

// InputConfig is a one line prompt. Validator runs on every answer before
// the prompt returns.
type InputConfig struct {
	Message   string
	Default   string
	Help      string
	Validator func(string) error
}

// SelectConfig is a pick-one prompt. DefaultIndex is ignored when out of
// range.
type SelectConfig struct {
	Message      string
	Options      []string
	DefaultIndex int
	PageSize     int
}

type TextAreaConfig struct {
	Message string
	Default string
}

// PromptDriver is what a Session needs from a terminal.
type PromptDriver interface {
	Input(ctx context.Context, cfg InputConfig) (string, error)
	// Select returns the index of the chosen option.
	Select(ctx context.Context, cfg SelectConfig) (int, error)
	TextArea(ctx context.Context, cfg TextAreaConfig) (string, error)
	Info(ctx context.Context, msg string) error
}

// SurveyDriver prompts with survey on a set of streams.
type SurveyDriver struct {
	stdio surveyterm.Stdio
}

// NewSurveyDriver prompts on the process terminal.
func NewSurveyDriver() *SurveyDriver {
	return NewSurveyDriverStdio(os.Stdin, os.Stdout, os.Stderr)
}

// NewSurveyDriverStdio prompts on the given streams.
func NewSurveyDriverStdio(in surveyterm.FileReader, out surveyterm.FileWriter, errOut io.Writer) *SurveyDriver {
	return &SurveyDriver{stdio: surveyterm.Stdio{In: in, Out: out, Err: errOut}}
}

func (d *SurveyDriver) Input(ctx context.Context, cfg InputConfig) (answer string, err error) {
	var opts []survey.AskOpt
	if check := cfg.Validator; check != nil {
		opts = append(opts, survey.WithValidator(func(ans any) error {
			s, _ := ans.(string)
			return check(s)
		}))
	}
	err = d.ask(ctx, &survey.Input{Message: cfg.Message, Default: cfg.Default, Help: cfg.Help}, &answer, opts...)
	return answer, err
}

func (d *SurveyDriver) Select(ctx context.Context, cfg SelectConfig) (int, error) {
	prompt := &survey.Select{Message: cfg.Message, Options: cfg.Options}
	if cfg.PageSize > 0 {
		prompt.PageSize = cfg.PageSize
	}
	if cfg.DefaultIndex >= 0 && cfg.DefaultIndex < len(cfg.Options) {
		prompt.Default = cfg.DefaultIndex
	}
	// survey writes the chosen index into an int target
	var idx int
	if err := d.ask(ctx, prompt, &idx); err != nil {
		return -1, err
	}
	return idx, nil
}

func (d *SurveyDriver) TextArea(ctx context.Context, cfg TextAreaConfig) (answer string, err error) {
	err = d.ask(ctx, &survey.Multiline{Message: cfg.Message, Default: cfg.Default}, &answer)
	return answer, err
}

func (d *SurveyDriver) Info(ctx context.Context, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(d.stdio.Out, msg)
	return err
}

func (d *SurveyDriver) ask(ctx context.Context, prompt survey.Prompt, out any, opts ...survey.AskOpt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts = append(opts, survey.WithStdio(d.stdio.In, d.stdio.Out, d.stdio.Err))
	err := survey.AskOne(prompt, out, opts...)
	if errors.Is(err, surveyterm.InterruptErr) {
		return ErrAborted
	}
	return err
}
