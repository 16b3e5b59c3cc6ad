package transfer

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Delivery hands an exported payload to its destination and reports
// completion through its error return.
type Delivery interface {
	Deliver(filename string, data []byte) error
}

// DirDelivery writes exports into a local directory.
type DirDelivery struct {
	Dir string
}

func (d *DirDelivery) Deliver(filename string, data []byte) error {
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return fmt.Errorf("export dir: %w", err)
	}
	path := filepath.Join(d.Dir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	log.Printf("[INFO] exported config to %s", path)
	return nil
}

// DeliverWithTimeout wraps a delivery that may block indefinitely.
// The timeout is a cancellation fallback only: hitting it abandons the
// wait, it does not mean the delivery succeeded.
func DeliverWithTimeout(d Delivery, filename string, data []byte, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- d.Deliver(filename, data) }()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("export delivery timed out after %s", timeout)
	}
}
