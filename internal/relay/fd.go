package relay

import (
	"fmt"
	"golang.org/x/sys/unix"
	"net"
	"os"
)

type filer interface {
	File() (*os.File, error)
}

// ConnFile returns a blocking duplicate of the connection's descriptor.
// The caller owns both the returned file and conn.
func ConnFile(conn net.Conn) (*os.File, error) {
	fc, ok := conn.(filer)
	if !ok {
		return nil, fmt.Errorf("connection of type %T has no descriptor", conn)
	}
	f, err := fc.File()
	if err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(int(f.Fd()), false); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}
