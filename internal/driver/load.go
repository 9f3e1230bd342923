package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mirvm/internal/bundle"
	"mirvm/internal/samples"
)

// LoadJob resolves arg to a job. An argument naming a file is decoded as a
// bundle; otherwise it must name a built-in sample.
func LoadJob(arg string) (Job, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		prog, err := bundle.ReadFile(arg)
		if err != nil {
			return Job{}, err
		}
		return NewJob(strings.TrimSuffix(filepath.Base(arg), bundle.Ext), prog), nil
	}
	if strings.HasSuffix(arg, bundle.Ext) {
		return Job{}, fmt.Errorf("bundle %s does not exist", arg)
	}
	s, ok := samples.Lookup(arg)
	if !ok {
		return Job{}, fmt.Errorf("unknown sample %q (known: %s)", arg, strings.Join(samples.Names(), ", "))
	}
	return NewJob(s.Name, s.Build()), nil
}

// LoadJobs resolves every argument.
func LoadJobs(args []string) ([]Job, error) {
	jobs := make([]Job, 0, len(args))
	for _, arg := range args {
		job, err := LoadJob(arg)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// AllSamples returns a job for every built-in sample.
func AllSamples() []Job {
	all := samples.All()
	jobs := make([]Job, len(all))
	for i, s := range all {
		jobs[i] = NewJob(s.Name, s.Build())
	}
	return jobs
}
