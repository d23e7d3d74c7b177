package pipeline

import (
	"bufio"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// Write renders res in the given format: "nexus" or "json".
func Write(w io.Writer, format string, res *Result) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "nexus", "":
		return writeNexus(w, res)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeNexus(w io.Writer, res *Result) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "#NEXUS")
	fmt.Fprintln(bw, "begin trees;")
	for _, c := range res.Clusters {
		fmt.Fprintf(bw, "\ttree %s = %s;\n", c.Name, c.Text)
	}
	fmt.Fprintln(bw, "end;")
	return bw.Flush()
}
