package probe

import (
	"context"
	"net"
)

// TCP checks health by dialing a TCP connection.
type TCP struct{}

func (*TCP) Check(ctx context.Context, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	conn.Close()
	return nil
}
