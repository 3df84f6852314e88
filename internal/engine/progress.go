package engine

import (
	"io"

	"gopkg.in/cheggaaa/pb.v1"
)

// progress wraps an optional terminal progress bar.
type progress struct {
	bar *pb.ProgressBar
}

func newProgress(w io.Writer, total int, prefix string) *progress {
	if w == nil || total == 0 {
		return &progress{}
	}
	bar := pb.New(total).Prefix(prefix)
	bar.Output = w
	bar.ShowSpeed = false
	bar.Start()
	return &progress{bar: bar}
}

func (p *progress) Increment() {
	if p.bar != nil {
		p.bar.Increment()
	}
}

func (p *progress) Finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}
