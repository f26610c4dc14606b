package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.viam.com/rdk/logging"

	"github.com/lkotsoni/cartesian-controllers/internal/config"
	"github.com/lkotsoni/cartesian-controllers/internal/controller"
	"github.com/lkotsoni/cartesian-controllers/internal/experiment"
	"github.com/lkotsoni/cartesian-controllers/internal/hardware"
	"github.com/lkotsoni/cartesian-controllers/internal/scheduler"
	"github.com/lkotsoni/cartesian-controllers/internal/transport"
	"github.com/lkotsoni/cartesian-controllers/internal/tui"
)

const feedSize = 64

// session is a started controller driven by a real-time loop.
type session struct {
	rig  *experiment.Rig
	loop *scheduler.Loop
}

func startSession(ctx context.Context, logger logging.Logger, cfg *config.Config, observers ...controller.Observer) (*session, error) {
	rig, err := experiment.NewRegistry().Build(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}
	for _, o := range observers {
		rig.Controller.AddObserver(o)
	}
	if err := rig.Controller.Start(ctx); err != nil {
		_ = rig.Close(ctx)
		return nil, err
	}

	loop, err := scheduler.NewLoop(logger.Sublogger("scheduler"), cfg.Scheduler.Hz, rig.Controller)
	if err == nil {
		err = loop.Start(ctx)
	}
	if err != nil {
		_ = rig.Controller.Stop(ctx)
		_ = rig.Close(ctx)
		return nil, err
	}
	return &session{rig: rig, loop: loop}, nil
}

func (s *session) close(logger logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s.loop.Stop()
	if err := s.rig.Controller.Stop(ctx); err != nil {
		logger.Warnf("stopping controller: %v", err)
	}
	if err := s.rig.Close(ctx); err != nil {
		logger.Warnf("closing hardware: %v", err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	logger := newLogger()
	if liveView {
		logger = logging.NewBlankLogger("cartesian")
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	feed := controller.NewPoseFeed(feedSize)
	observers := []controller.Observer{feed}
	var liveFeed *controller.PoseFeed
	if liveView {
		liveFeed = controller.NewPoseFeed(feedSize)
		observers = append(observers, liveFeed)
	}

	sess, err := startSession(ctx, logger, cfg, observers...)
	if err != nil {
		return err
	}
	defer sess.close(logger)

	srv := transport.NewServer(logger.Sublogger("transport"), sess.rig.Controller,
		transport.WithLoopStats(sess.loop.Stats),
		transport.WithStreamRate(cfg.Server.StreamHz),
	)
	srv.Stream(feed.C())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(cfg.Server.Addr) }()

	if liveView {
		go func() {
			errCh <- tui.RunLive(sess.rig.Controller, liveFeed.C(),
				tui.WithLoopStats(sess.loop.Stats),
				tui.WithBounds(sess.rig.Controller.Config().Bounds),
			)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errCh:
	}
	if shutdownErr := srv.Shutdown(); shutdownErr != nil {
		logger.Warnf("server shutdown: %v", shutdownErr)
	}
	return err
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	logger := logging.NewBlankLogger("cartesian")

	feed := controller.NewPoseFeed(feedSize)
	sess, err := startSession(cmd.Context(), logger, cfg, feed)
	if err != nil {
		return err
	}
	defer sess.close(logger)

	return tui.RunLive(sess.rig.Controller, feed.C(),
		tui.WithLoopStats(sess.loop.Stats),
		tui.WithBounds(sess.rig.Controller.Config().Bounds),
	)
}

func watchPoses(cmd *cobra.Command, args []string) error {
	url := "ws://localhost" + config.DefaultAddr + "/ws/" + controller.DefaultCurrentPoseTopic
	if len(args) > 0 {
		url = args[0]
	}
	ctx := cmd.Context()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return errors.Wrapf(err, "dial %s", url)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "read pose")
		}
		var msg transport.PoseStamped
		if err := json.Unmarshal(data, &msg); err != nil {
			return errors.Wrap(err, "decode pose")
		}
		p, o := msg.Pose.Position, msg.Pose.Orientation
		fmt.Printf("%s  %s  x=%+.4f y=%+.4f z=%+.4f  q=(%.4f, %.4f, %.4f, %.4f)\n",
			msg.Header.Stamp.Format("15:04:05.000"), msg.Header.FrameID,
			p.X, p.Y, p.Z, o.W, o.X, o.Y, o.Z)
	}
}

func listPorts() ([]string, error) {
	return hardware.ListPorts()
}
