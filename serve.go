package prorest

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gwaylib/errors"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

type ServeCommand struct {
	Listen string `short:"l" long:"listen" description:"listen address, default [server] listen"`
}

func (v *ServeCommand) Execute(args []string) error {
	cfg, closer, err := setup(&options)
	if err != nil {
		return errors.As(err)
	}
	defer closer.Close()

	addr := cfg.Server.Listen
	if len(v.Listen) > 0 {
		addr = v.Listen
	}
	if len(cfg.Users) == 0 {
		log.Warn("no [user.NAME] section configured, every login will fail")
	}
	srv := NewServer(cfg)
	if _, err := srv.Listen(addr); err != nil {
		return errors.As(err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		s, ok := <-sig
		if !ok {
			return
		}
		log.WithField("signal", s.String()).Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			log.Warn(errors.As(err).Error())
		}
	}()
	return srv.Serve()
}

func init() {
	parser.AddCommand(
		"serve",
		"run a stub ProREST service",
		"run a ProREST service for development, serving the [user.NAME] and [procedure.NAME] sections of the config",
		&ServeCommand{},
	)
}
