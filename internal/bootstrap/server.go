package bootstrap

import (
	"bufio"
	"io"
	"log/slog"
	"net"

	"github.com/tos-network/ralite/internal/bigint"
	"github.com/tos-network/ralite/internal/block"
	"github.com/tos-network/ralite/internal/blockprocessor"
	"github.com/tos-network/ralite/internal/log"
	"github.com/tos-network/ralite/internal/store"
	"github.com/tos-network/ralite/internal/wire"
)

// Server answers frontier_req, bulk_pull, and bulk_push requests read
// off an already-accepted connection (spec §4.12).
type Server struct {
	store *store.Store
	proc  *blockprocessor.Processor
	log   *slog.Logger
}

func NewServer(s *store.Store, proc *blockprocessor.Processor) *Server {
	return &Server{store: s, proc: proc, log: log.New("module", "bootstrap-server")}
}

// Serve reads one request header and payload off conn and dispatches
// it, then closes conn; each accepted connection serves exactly one
// request, matching the client's one-connection-per-phase pattern.
func (srv *Server) Serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	headerBuf := make([]byte, wire.HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		srv.log.Debug("bootstrap conn: short header", "err", err)
		return
	}
	h, err := wire.DecodeHeader(headerBuf)
	if err != nil {
		srv.log.Debug("bootstrap conn: bad header", "err", err)
		return
	}

	var serveErr error
	switch h.Type {
	case wire.TypeFrontierReq:
		serveErr = srv.serveFrontier(conn, r)
	case wire.TypeBulkPull:
		serveErr = srv.serveBulkPull(conn, r)
	case wire.TypeBulkPush:
		serveErr = srv.serveBulkPush(r)
	default:
		srv.log.Debug("bootstrap conn: unexpected type", "type", h.Type)
		return
	}
	if serveErr != nil && serveErr != io.EOF {
		srv.log.Debug("bootstrap conn: serve failed", "type", h.Type, "err", serveErr)
	}
}

func (srv *Server) serveFrontier(w io.Writer, r *bufio.Reader) error {
	reqBuf := make([]byte, 40)
	if _, err := io.ReadFull(r, reqBuf); err != nil {
		return err
	}
	req, err := wire.DecodeFrontierReq(reqBuf)
	if err != nil {
		return err
	}

	err = srv.store.View(func(rd store.Reader) error {
		return store.AccountIterate(rd, func(account bigint.U256, info store.AccountInfo) error {
			if compareU256(account, req.StartAccount) < 0 {
				return nil
			}
			_, werr := w.Write(wire.EncodeFrontierPair(wire.FrontierPair{Account: account, Head: info.Head}))
			return werr
		})
	})
	if err != nil {
		return err
	}
	_, err = w.Write(wire.EncodeFrontierPair(wire.FrontierPair{}))
	return err
}

// serveBulkPull streams blocks from req.Start back to req.End,
// back-to-front as the client expects, terminated by not_a_block (spec
// §4.12 step 2).
func (srv *Server) serveBulkPull(w io.Writer, r *bufio.Reader) error {
	pullBuf := make([]byte, 64)
	if _, err := io.ReadFull(r, pullBuf); err != nil {
		return err
	}
	pull, err := wire.DecodeBulkPull(pullBuf)
	if err != nil {
		return err
	}

	var chain []block.Block
	err = srv.store.View(func(rd store.Reader) error {
		hash := pull.Start
		for !hash.IsZero() && hash != pull.End {
			b, _, ok, err := store.BlockGet(rd, hash)
			if err != nil || !ok {
				return err
			}
			chain = append(chain, b)
			hash = b.Previous()
		}
		return nil
	})
	if err != nil {
		return err
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if _, err := w.Write(wire.EncodeBulkPushEntry(chain[i])); err != nil {
			return err
		}
	}
	_, err = w.Write(wire.BulkPushTerminator)
	return err
}

// serveBulkPush reads pushed blocks until the terminator, enqueuing
// each with force=false exactly like a pulled block (spec §4.12 step
// 3).
func (srv *Server) serveBulkPush(r *bufio.Reader) error {
	for {
		kindByte, err := r.ReadByte()
		if err != nil {
			return err
		}
		kind := block.Kind(kindByte)
		if kind == block.KindInvalid {
			return nil
		}
		size := block.Size(kind)
		if size == 0 {
			return wire.ErrBadEncoding
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return err
		}
		b, err := block.DecodeBinary(kind, body)
		if err != nil {
			return err
		}
		srv.proc.Enqueue(b, false, false)
	}
}

func compareU256(a, b bigint.U256) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
