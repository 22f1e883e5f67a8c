// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Command secopd runs a SECoP node: it loads a YAML configuration,
// builds the declared modules, starts one poll scheduler per module and
// serves the line-framed protocol over TCP, grounded on the process
// wiring style of the teacher's repo (a single cmd entry point
// constructing a Connect/server pair) generalized from IEC 104 framing
// to SECoP's line protocol.
package main

import (
	"bufio"
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/secop-io/secopd/clog"
	"github.com/secop-io/secopd/dispatch"
	"github.com/secop-io/secopd/module"
	"github.com/secop-io/secopd/poll"
	"github.com/secop-io/secopd/secnode"
	"github.com/secop-io/secopd/secopcodec"
)

func main() {
	configPath := flag.String("config", "secop.yaml", "path to the node's YAML configuration")
	metricsAddr := flag.String("metrics", ":9767", "address to serve Prometheus metrics on")
	flag.Parse()

	log := clog.NewLogger("secopd")

	cfg, err := secnode.LoadConfig(*configPath)
	if err != nil {
		log.Critical("config: %v", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	node := secnode.New(secnode.NodeProperties{
		EquipmentID: cfg.EquipmentID,
		Description: cfg.Description,
		Firmware:    "secopd",
		Version:     "1.0",
	}, log)

	for name, mc := range cfg.Modules {
		name, mc := name, mc
		node.Declare(name, moduleFactory(name, mc), mc.DependsOn...)
	}
	node.CreateModules()
	for name, err := range node.FailedModules() {
		log.Error("module %s failed to start: %v", name, err)
	}

	if err := secnode.ValidateDescriptiveData(node.GetDescriptiveData("", "")); err != nil {
		log.Critical("descriptive data failed startup validation: %v", err)
		os.Exit(1)
	}

	d := dispatch.New(node, log, reg)
	for _, name := range node.AllModuleNames() {
		if m, ok := node.GetModule(name); ok {
			d.AttachModule(name, m)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for _, name := range node.AllModuleNames() {
		m, ok := node.GetModule(name)
		if !ok {
			continue
		}
		m.PollInterval = cfg.PollInterval.Seconds()
		sched, err := poll.NewScheduler(m, log.With("module", name), time.Second, reg)
		if err != nil {
			log.Error("module %s: scheduler init: %v", name, err)
			continue
		}
		sched.WriteInitParams(cfg.Modules[name].Parameters)
		sched.InitialReads()
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if err := sched.Run(ctx); err != nil {
				log.Error("module %s: poll loop exited: %v", name, err)
			}
		}(name)
	}

	go func() {
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		log.Info("metrics listening on %s", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			log.Warn("metrics server: %v", err)
		}
	}()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		log.Critical("listen on %s: %v", cfg.Listen, err)
		os.Exit(1)
	}
	log.Info("SECoP node %s listening on %s", cfg.EquipmentID, cfg.Listen)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
		_ = ln.Close()
	}()

	serve(ctx, ln, d, log)
	wg.Wait()

	node.ShutdownModules(func(m *module.Module) error { return nil })
}

func serve(ctx context.Context, ln net.Listener, d *dispatch.Dispatcher, log clog.Clog) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Warn("accept: %v", err)
				continue
			}
		}
		go handleConn(ctx, conn, d, log)
	}
}

type lineConn struct {
	id string
	nc net.Conn
	mu sync.Mutex
}

func (c *lineConn) ID() string { return c.id }

func (c *lineConn) Send(f secopcodec.Frame) error {
	raw, err := secopcodec.Encode(f)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.nc.Write(raw)
	return err
}

func handleConn(ctx context.Context, nc net.Conn, d *dispatch.Dispatcher, log clog.Clog) {
	defer nc.Close()
	conn := &lineConn{id: uuid.NewString(), nc: nc}
	r := bufio.NewReader(nc)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line, err := r.ReadBytes('\n')
		if err != nil {
			if len(line) == 0 {
				return
			}
		}
		for _, reply := range d.Handle(conn, line) {
			if sendErr := conn.Send(reply); sendErr != nil {
				log.Warn("%s: send: %v", conn.id, sendErr)
				return
			}
		}
		if err != nil {
			return
		}
	}
}
