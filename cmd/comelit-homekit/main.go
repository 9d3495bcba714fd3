package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/cloudkucooland/HomeKitBridges/ComelitHKBridge"
	"github.com/cloudkucooland/HomeKitBridges/ComelitHKBridge/comelit"

	"github.com/brutella/hap"
	"github.com/brutella/hap/log"

	"github.com/urfave/cli/v2"

	"github.com/vishvananda/netlink"
)

func main() {
	var dir, config string
	var debug bool

	app := cli.App{
		Name:  "Comelit homekit bridge",
		Usage: "server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "dir",
				Value:       "/var/db/HomeKitBridges/Comelit",
				Usage:       "configuration directory",
				Destination: &dir,
			},
			&cli.StringFlag{
				Name:        "config",
				Value:       "config.json",
				Usage:       "config file, relative to dir; .yaml/.yml are read as YAML",
				Destination: &config,
			},
			&cli.BoolFlag{
				Name:        "debug",
				Value:       false,
				Usage:       "enable debug logging",
				Destination: &debug,
			},
		},
		Action: func(c *cli.Context) error {
			if debug {
				log.Debug.Enable()
			}

			fulldir, err := filepath.Abs(dir)
			if err != nil {
				log.Info.Panic("unable to get config directory", dir)
			}

			if !filepath.IsAbs(config) {
				config = filepath.Join(fulldir, config)
			}
			conf, err := comelithkbridge.LoadConfig(config)
			if err != nil {
				log.Info.Panic(err)
			}

			if conf.BridgeURL == "" {
				host, err := comelithkbridge.Discover()
				if err != nil {
					log.Info.Printf("no bridge_url configured and discovery failed: %s", err.Error())
				}
				conf.BridgeURL = host
			}

			// errors go to the log, and to MQTT when configured
			var telemetry *comelithkbridge.Telemetry
			var publisher comelithkbridge.StatePublisher
			reporter := comelithkbridge.NewReporter()
			if conf.MQTT.Broker != "" {
				telemetry, err = comelithkbridge.NewTelemetry(conf.MQTT)
				if err != nil {
					log.Info.Printf("mqtt disabled: %s", err.Error())
				} else {
					reporter = comelithkbridge.NewReporter(telemetry)
					publisher = telemetry
				}
			}

			client := comelit.NewClient(conf.BridgeURL, conf.BridgePort, conf.RateLimit)
			var platform *comelithkbridge.Platform
			if conf.AlarmEnabled() {
				addr, port := conf.AlarmAddressPort()
				vedo := comelit.NewVedoClient(addr, port, conf.AlarmCode)
				platform = comelithkbridge.NewPlatform(conf, client, vedo, reporter, publisher)
			} else {
				platform = comelithkbridge.NewPlatform(conf, client, nil, reporter, publisher)
			}

			// listen for interface status changes
			var linkstatuschan = make(chan netlink.LinkUpdate, 5)
			var disconnectchan = make(chan struct{})
			if err := netlink.LinkSubscribe(linkstatuschan, disconnectchan); err != nil {
				log.Info.Panic(err.Error())
			}

			// wait for signal to shut down
			sigch := make(chan os.Signal, 3)
			signal.Notify(sigch, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGHUP, os.Interrupt)

			sessionctx, sessioncancel := context.WithCancel(context.Background())
			if err := platform.Startup(sessionctx); err != nil {
				log.Info.Panic(err)
			}

			var httpwaitgroup sync.WaitGroup
			if conf.ListenAddr != "" {
				httpwaitgroup.Add(1)
				go func() {
					defer httpwaitgroup.Done()
					if err := comelithkbridge.HTTPServer(sessionctx, conf.ListenAddr, platform); err != nil {
						log.Info.Println(err.Error())
					}
				}()
			}

			// does not change over time
			bridge := platform.Bridge()
			devices := platform.Accessories()
			var hapwaitgroup sync.WaitGroup

		DONE:
			for {
				hapctx, hapcancel := context.WithCancel(sessionctx)
				log.Info.Printf("serving %d comelit devices", len(devices))
				hapserver, err := hap.NewServer(hap.NewFsStore(fulldir), bridge, devices...)
				if err != nil {
					log.Info.Panic(err)
				}
				hapserver.Pin = conf.Pin

				// serve HomeKit
				hapwaitgroup.Add(1)
				go func() {
					defer hapwaitgroup.Done()
					hapserver.ListenAndServe(hapctx)
				}()

				select {
				case sig := <-sigch:
					log.Info.Printf("shutdown requested by signal: %s", sig)
					hapcancel()
					hapwaitgroup.Wait()
					break DONE
				case <-linkstatuschan:
					log.Info.Printf("interface change, restarting")
					hapcancel()
					hapwaitgroup.Wait()
					// loop back around
				}
			}

			close(disconnectchan)
			platform.Shutdown()
			sessioncancel()
			httpwaitgroup.Wait()
			if telemetry != nil {
				telemetry.Close()
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Info.Panic(err)
	}
}
