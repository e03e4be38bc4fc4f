/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command fixctl is the interactive operator console of spec.md §6
// ("Operator console"), adapted from the teacher's Repl
// (fixclient/repl.go): the same github.com/chzyer/readline prompt loop
// and command-dispatch switch, generalized from market-data/order-entry
// subcommands to the generic session commands this engine exposes
// (connect, logon, logout, send, status, resend).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/redis/go-redis/v9"

	"fixengine/config"
	"fixengine/engine"
	"fixengine/field"
	"fixengine/message"
	"fixengine/pipeline"
	"fixengine/session"
	"fixengine/store"
	"fixengine/tag"
	"fixengine/transport"
	"fixengine/wire"
)

func main() {
	configPath := flag.String("config", "fixctl.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("fixctl: %v", err)
		os.Exit(engine.ExitConfigError)
	}

	console := &console{cfg: cfg}
	console.run()
}

type console struct {
	cfg *config.Config
	eng *engine.Engine
	ctx context.Context
}

// completer mirrors the teacher's PcItem tree (fixclient/repl.go),
// generalized to this engine's own command set.
func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("connect"),
		readline.PcItem("logon"),
		readline.PcItem("logout"),
		readline.PcItem("send",
			readline.PcItem("0"), // Heartbeat
			readline.PcItem("1"), // TestRequest
			readline.PcItem("2"), // ResendRequest
		),
		readline.PcItem("resend"),
		readline.PcItem("status"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

func (c *console) run() {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "fixctl> ",
		HistoryFile:     "/tmp/fixctl_history",
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		log.Printf("fixctl: readline init: %v", err)
		return
	}
	defer rl.Close()

	c.ctx = context.Background()

	for {
		line, err := rl.Readline()
		if err != nil {
			break
		}
		parts := strings.Fields(strings.TrimSpace(line))
		if len(parts) == 0 {
			continue
		}

		switch strings.ToLower(parts[0]) {
		case "connect":
			c.handleConnect()
		case "logon":
			c.handleLogon()
		case "logout":
			c.handleLogout()
		case "send":
			c.handleSend(parts[1:])
		case "resend":
			c.handleResend(parts[1:])
		case "status":
			c.handleStatus()
		case "help":
			printHelp()
		case "exit":
			return
		default:
			fmt.Println("unknown command, type 'help' for available commands")
		}
	}
}

func (c *console) handleConnect() {
	if c.eng != nil {
		fmt.Println("already connected")
		return
	}

	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	t, err := transport.Dial(addr, 10*time.Second)
	if err != nil {
		fmt.Printf("connect failed: %v\n", err)
		return
	}

	codec := wire.New(false)

	backend, err := openStore(c.cfg.MessageStore)
	if err != nil {
		fmt.Printf("store init failed: %v\n", err)
		return
	}

	sess, err := session.New(session.Config{
		ConnectionName: c.cfg.ConnectionName,
		Identity: message.Identity{
			BeginString:  c.cfg.BeginString,
			SenderCompID: c.cfg.SenderCompID,
			TargetCompID: c.cfg.TargetCompID,
		},
		Username:     c.cfg.Username,
		Password:     c.cfg.Password,
		HeartBtInt:   c.cfg.HeartbeatInterval,
		ResetOnLogon: c.cfg.ResetOnLogon,
		Codec:        codec,
		Store:        backend,
		Send:         t.Write,
	})
	if err != nil {
		fmt.Printf("session init failed: %v\n", err)
		return
	}

	auth := pipeline.NewAuthenticationApp(c.cfg.Username, c.cfg.Password)
	auth.Session = sess
	pl := pipeline.New([]pipeline.Processor{auth})

	e := engine.New(t, codec, sess, pl)
	e.Deliver = func(m *message.Message) {
		mt, _ := m.MsgType()
		fmt.Printf("\n<- delivered %s\n", mt)
	}
	c.eng = e

	go func() {
		code := e.Run(c.ctx)
		fmt.Printf("\nengine stopped, exit code %d\n", code)
		c.eng = nil
	}()
	fmt.Println("connected")
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Selector {
	case "sqlite":
		return store.NewSQLiteStore(cfg.Path)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
		return store.NewRedisStore(client), nil
	default:
		return store.NewMemoryStore(), nil
	}
}

func (c *console) handleLogon() {
	if c.eng == nil {
		fmt.Println("not connected")
		return
	}
	if err := c.eng.Start(c.ctx); err != nil {
		fmt.Printf("logon failed: %v\n", err)
	}
}

func (c *console) handleLogout() {
	if c.eng == nil {
		fmt.Println("not connected")
		return
	}
	if err := c.eng.Session.Disconnect("operator logout"); err != nil {
		fmt.Printf("logout failed: %v\n", err)
	}
}

// handleSend parses `send <msgtype> tag=value,tag=value,...` (spec.md
// §6's send(message) shape, typed from the console instead of JSON).
func (c *console) handleSend(args []string) {
	if c.eng == nil {
		fmt.Println("not connected")
		return
	}
	if len(args) == 0 {
		fmt.Println("usage: send <msgtype> [tag=value,...]")
		return
	}

	msg := message.New()
	msg.Header.Set(field.New(tag.MsgType, args[0]))

	if len(args) > 1 {
		for _, pair := range strings.Split(args[1], ",") {
			kv := strings.SplitN(pair, "=", 2)
			if len(kv) != 2 {
				continue
			}
			t, err := strconv.Atoi(kv[0])
			if err != nil {
				continue
			}
			msg.Body.Set(field.New(tag.Tag(t), kv[1]))
		}
	}

	if err := c.eng.Send(c.ctx, msg); err != nil {
		fmt.Printf("send failed: %v\n", err)
	}
}

func (c *console) handleResend(args []string) {
	if c.eng == nil {
		fmt.Println("not connected")
		return
	}
	if len(args) != 2 {
		fmt.Println("usage: resend <begin> <end>")
		return
	}
	begin, err1 := strconv.Atoi(args[0])
	end, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		fmt.Println("resend: begin/end must be integers")
		return
	}
	req := message.NewResendRequest(c.eng.Session.Identity(), begin, end, time.Now())
	if err := c.eng.Send(c.ctx, req); err != nil {
		fmt.Printf("resend failed: %v\n", err)
	}
}

func (c *console) handleStatus() {
	if c.eng == nil {
		fmt.Println("state: Disconnected (no engine)")
		return
	}
	send, expect := c.eng.Session.SeqNums()
	fmt.Printf("state: %s\nnext_send_seq: %d\nnext_expect_seq: %d\n", c.eng.Session.State(), send, expect)
}

func printHelp() {
	fmt.Println(`Commands:
  connect                     open the transport and build the session
  logon                       start the pipeline and send Logon
  logout                      send Logout
  send <type> [tag=val,...]   inject an application message
  resend <begin> <end>        send a ResendRequest
  status                      print session state
  help                        this message
  exit                        quit`)
}
