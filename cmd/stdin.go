package cmd

import (
	"io"
	"os"
)

// stdin is swapped out in tests.
var stdin io.Reader = os.Stdin

func readAllStdin() ([]byte, error) {
	return io.ReadAll(stdin)
}
