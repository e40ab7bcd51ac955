package flash

import "fmt"

// VerifyError reports that every write-then-verify attempt read back
// data that did not match the input image.
type VerifyError struct {
	// Offset is the device offset the image was written to.
	Offset int64
	// Attempts is the number of write-then-verify cycles performed.
	Attempts int
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verification failed at offset 0x%X after %d attempts", e.Offset, e.Attempts)
}
