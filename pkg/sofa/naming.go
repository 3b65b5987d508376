package sofa

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"sofa-convert/pkg/arrayformat"
)

// ChannelLabel returns the file-name suffix of receiver index out of count
// receivers: "left"/"right" for binaural data, otherwise "r" followed by the
// zero-padded index.
func ChannelLabel(index, count int) string {
	if count == 2 {
		if index == 0 {
			return "left"
		}

		return "right"
	}

	width := len(strconv.Itoa(max(count-1, 0)))

	return fmt.Sprintf("r%0*d", width, index)
}

// OutputPath returns <base>_<label><ext>.
func OutputPath(base, label string) string {
	return base + "_" + label + arrayformat.Extension
}

// DefaultOutputBase strips the extension from an input path.
func DefaultOutputBase(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input))
}

// SourceName returns the base name of an input path without extension.
func SourceName(input string) string {
	return filepath.Base(DefaultOutputBase(input))
}
