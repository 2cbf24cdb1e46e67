package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/Reverse-Call-Center/call-signal/config"
	"github.com/Reverse-Call-Center/call-signal/control"
	"github.com/Reverse-Call-Center/call-signal/dialer"
	"github.com/Reverse-Call-Center/call-signal/haptics"
	"github.com/Reverse-Call-Center/call-signal/logger"
	"github.com/Reverse-Call-Center/call-signal/server"
	callsignal "github.com/Reverse-Call-Center/call-signal/signal"
	"github.com/Reverse-Call-Center/call-signal/types"
	"github.com/emiago/diago"
	"github.com/pkg/errors"
)

const usage = `usage: call-signal [-config path] <command> [args]

commands:
  serve              run the controller with its gRPC and SIP surfaces
  simulate [number]  present an incoming call
  accept             accept the presented call (dials the caller)
  reject             reject the presented call
  status             print the current session
  watch              print every session change
`

func main() {
	configPath := flag.String("config", "", "path to config.json (default: configs/config.json next to the binary)")
	addr := flag.String("addr", "", "control server address for client commands (default: grpc_listen_address)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if args[0] == "serve" {
		err = serve(ctx, cfg)
	} else {
		target := *addr
		if target == "" {
			target = cfg.GRPCListenAddress
		}
		err = runClient(ctx, target, args)
	}
	if err != nil {
		logger.Logger.WithError(err).Error("call-signal failed")
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadConfig()
	}
	return config.LoadConfigFile(path, false)
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.Component("main")
	log.Info("Call signal controller starting")

	motor := haptics.NewMotor(&haptics.LogActuator{Log: logger.Component("haptics")})
	defer motor.Cancel()

	var d callsignal.Dialer = &dialer.LogDialer{Log: logger.Component("dialer"), LogNumbers: cfg.LogPhoneNumbers}

	var dg *diago.Diago
	if cfg.SIPEnabled {
		var err error
		if dg, err = server.NewUserAgent(cfg); err != nil {
			return err
		}
		if cfg.SIPGateway != "" {
			d = dialer.NewSIPDialer(ctx, dg, cfg.SIPGateway, logger.Component("dialer"), cfg.LogPhoneNumbers)
		}
	}

	controller := newController(cfg, motor, d)

	if dg != nil {
		go func() {
			if err := server.StartSIPServer(ctx, dg, cfg, controller, logger.Component("sip")); err != nil {
				log.WithError(err).Error("SIP server error")
			}
		}()
	}

	return serveControl(ctx, cfg, controller)
}

func newController(cfg *config.Config, motor *haptics.Motor, d callsignal.Dialer) *callsignal.Controller {
	policy := callsignal.Policy{
		DefaultNumber: cfg.DefaultNumber,
		Pattern:       haptics.PatternFromMillis(cfg.VibrationPatternMs),
	}
	return callsignal.NewController(motor, d,
		callsignal.WithPolicy(policy),
		callsignal.WithLogger(logger.Component("controller")),
		callsignal.WithLogNumbers(cfg.LogPhoneNumbers),
	)
}

func serveControl(ctx context.Context, cfg *config.Config, controller *callsignal.Controller) error {
	log := logger.Component("control")

	lis, err := net.Listen("tcp", cfg.GRPCListenAddress)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", cfg.GRPCListenAddress)
	}

	grpcServer := control.NewGRPCServer(controller, log)
	go func() {
		<-ctx.Done()
		log.Info("Shutting down control server")
		grpcServer.GracefulStop()
	}()

	log.WithField("address", lis.Addr().String()).Info("Control gRPC server listening")
	if err := grpcServer.Serve(lis); err != nil {
		return errors.Wrap(err, "control server failed")
	}
	return nil
}

func runClient(ctx context.Context, addr string, args []string) error {
	conn, err := control.Dial(addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	client := control.NewClient(conn)

	if args[0] == "watch" {
		return client.Watch(ctx, printSession)
	}

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var cs types.CallSession
	switch args[0] {
	case "simulate":
		var number string
		if len(args) > 1 {
			number = args[1]
		}
		cs, err = client.SimulateCall(reqCtx, number)
	case "accept":
		cs, err = client.HandleCallAction(reqCtx, callsignal.ActionAccept)
	case "reject":
		cs, err = client.HandleCallAction(reqCtx, callsignal.ActionReject)
	case "status":
		cs, err = client.Session(reqCtx)
	default:
		flag.Usage()
		return errors.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		return err
	}
	printSession(cs)
	return nil
}

func printSession(cs types.CallSession) {
	number := cs.Number
	if !cs.HasNumber() {
		number = "-"
	}
	fmt.Printf("state=%s number=%s visible=%t active=%t id=%s\n",
		cs.State(), number, cs.IsVisible, cs.IsActive, cs.ID)
}
