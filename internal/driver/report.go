package driver

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"mirvm/internal/observ"
	"mirvm/internal/version"
)

// Report is the YAML document written for a batch.
type Report struct {
	Version string      `yaml:"version"`
	Machine string      `yaml:"machine"`
	Target  string      `yaml:"target"`
	Summary Summary     `yaml:"summary"`
	Jobs    []JobReport `yaml:"jobs"`
}

type Summary struct {
	Total  int    `yaml:"total"`
	Passed int    `yaml:"passed"`
	Failed int    `yaml:"failed"`
	Steps  uint64 `yaml:"steps"`
}

// JobReport is one job inside a Report.
type JobReport struct {
	Name      string        `yaml:"name"`
	Status    string        `yaml:"status"`
	Steps     uint64        `yaml:"steps"`
	Value     string        `yaml:"value,omitempty"`
	Code      string        `yaml:"code,omitempty"`
	Class     string        `yaml:"class,omitempty"`
	Message   string        `yaml:"message,omitempty"`
	Location  string        `yaml:"location,omitempty"`
	Backtrace []string      `yaml:"backtrace,omitempty"`
	Timing    observ.Report `yaml:"timing"`
}

// NewReport summarizes results. Missing results (jobs that never ran
// because the batch stopped) are skipped.
func NewReport(results []*Result, opts Options) Report {
	r := Report{
		Version: version.Plain(),
		Machine: opts.Personality.String(),
		Target:  opts.Target.Triple,
	}
	for _, res := range results {
		if res == nil {
			continue
		}
		jr := JobReport{Name: res.Name, Steps: res.Steps, Timing: res.Timing}
		r.Summary.Total++
		r.Summary.Steps += res.Steps
		if res.OK() {
			r.Summary.Passed++
			jr.Status = "ok"
			jr.Value = res.Display()
		} else {
			r.Summary.Failed++
			fe := res.Failure
			jr.Status = "failed"
			jr.Code = fe.Code.String()
			jr.Class = fe.Class().String()
			jr.Message = fe.Message
			jr.Location = res.Files.Format(fe.Span)
			for _, f := range fe.Backtrace {
				jr.Backtrace = append(jr.Backtrace, fmt.Sprintf("%s %s at %s", f.FuncName, f.Location, res.Files.Format(f.Span)))
			}
		}
		r.Jobs = append(r.Jobs, jr)
	}
	return r
}

// Encode writes r as YAML.
func (r Report) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

// WriteFile writes r to path.
func (r Report) WriteFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return r.Encode(f)
}

// ReadReport decodes a report written by Encode.
func ReadReport(r io.Reader) (Report, error) {
	var rep Report
	if err := yaml.NewDecoder(r).Decode(&rep); err != nil {
		return Report{}, fmt.Errorf("failed to decode report: %w", err)
	}
	return rep, nil
}
