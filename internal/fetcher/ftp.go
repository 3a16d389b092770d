package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ftpTarget holds the pieces of a parsed ftp:// source. Vendors that drop
// invoice batches on an FTP site encode credentials in the URL userinfo;
// anonymous login is the fallback.
type ftpTarget struct {
	host     string
	path     string
	user     string
	password string
}

func parseFTPURL(rawURL string) (ftpTarget, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ftpTarget{}, eris.Wrap(err, "fetcher: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return ftpTarget{}, eris.Errorf("fetcher: expected ftp scheme, got %q", u.Scheme)
	}
	if u.Path == "" {
		return ftpTarget{}, eris.New("fetcher: empty path in ftp url")
	}

	host := u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	target := ftpTarget{
		host:     host,
		path:     u.Path,
		user:     "anonymous",
		password: "anonymous@",
	}
	if u.User != nil {
		target.user = u.User.Username()
		if pass, ok := u.User.Password(); ok {
			target.password = pass
		}
	}

	return target, nil
}

// fetchFTP retrieves one file from an FTP drop site.
func (c *Client) fetchFTP(ctx context.Context, rawURL string) ([]byte, error) {
	target, err := parseFTPURL(rawURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("fetcher: ftp connect",
		zap.String("host", target.host),
		zap.String("path", target.path),
	)

	conn, err := ftp.Dial(target.host, ftp.DialWithTimeout(c.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: ftp dial")
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login(target.user, target.password); err != nil {
		return nil, eris.Wrap(err, "fetcher: ftp login")
	}

	resp, err := conn.Retr(target.path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: ftp retrieve %s", target.path)
	}
	defer resp.Close() //nolint:errcheck

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: ftp read")
	}

	return data, nil
}
