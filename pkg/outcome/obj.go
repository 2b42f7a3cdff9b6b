package outcome

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// WriteOBJ writes the outcome as a Wavefront OBJ: one "v" line per vertex
// and one "f" line per polygon, with 1-based indices.
func WriteOBJ(w io.Writer, o *Outcome) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "# %d vertices, %d faces\n", len(o.Vertices), len(o.Faces)); err != nil {
		return fmt.Errorf("writing obj header: %w", err)
	}
	for _, v := range o.Vertices {
		bw.WriteString("v ")
		bw.WriteString(formatFloat(v.X))
		bw.WriteByte(' ')
		bw.WriteString(formatFloat(v.Y))
		bw.WriteByte(' ')
		bw.WriteString(formatFloat(v.Z))
		bw.WriteByte('\n')
	}
	for _, f := range o.Faces {
		bw.WriteString("f")
		for _, idx := range f {
			bw.WriteByte(' ')
			bw.WriteString(strconv.Itoa(idx + 1))
		}
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing obj: %w", err)
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}
