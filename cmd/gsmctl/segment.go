package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/germanamz/gsmgate/pkg/segment"
)

// runSegment prints the segmentation of the arguments, or of stdin when none
// are given.
func runSegment(args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("segment", flag.ContinueOnError)
	fs.SetOutput(out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	text := strings.Join(fs.Args(), " ")
	if fs.NArg() == 0 {
		data, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("segment: read stdin: %w", err)
		}
		text = strings.TrimRight(string(data), "\r\n")
	}

	res := segment.Count(text)
	_, err := fmt.Fprintf(out, "chars: %d\nsegments: %d\nencoding: %s\nremaining: %d\n",
		res.Chars, res.Segments, res.Encoding, res.Remaining())
	return err
}
