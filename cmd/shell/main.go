// cmd/shell is an interactive REPL driving a running node's admin
// gRPC surface (internal/hostapi), in the same peterh/liner idiom as
// the teacher's cmd/client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"p2pstreamd/internal/hostapi"

	"github.com/peterh/liner"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7947", "address of the node's admin gRPC endpoint")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout (e.g., 5s)")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	conn, client, err := connect(*addr)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *addr, err)
	}
	defer conn.Close()

	currentAddr := *addr
	fmt.Printf("p2pstreamd interactive shell. Connected to %s\n", currentAddr)
	fmt.Println("Available commands: subscribe/unsubscribe/publish/addchannel/removechannel/join/status/use/exit")

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt(fmt.Sprintf("p2pstreamd[%s]> ", currentAddr))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println("Aborted")
				continue
			}
			break
		}
		line.AppendHistory(input)

		args := strings.Fields(strings.TrimSpace(input))
		if len(args) == 0 {
			continue
		}
		cmd := args[0]
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)

		switch cmd {
		case "subscribe":
			if len(args) < 2 {
				fmt.Println("Usage: subscribe <channel>")
				cancel()
				continue
			}
			ch, err := parseChannel(args[1])
			if err != nil {
				fmt.Println(err)
				cancel()
				continue
			}
			if err := client.Subscribe(ctx, ch); err != nil {
				fmt.Printf("Subscribe failed: %v\n", err)
			} else {
				fmt.Println("Subscribed")
			}

		case "unsubscribe":
			if len(args) < 2 {
				fmt.Println("Usage: unsubscribe <channel>")
				cancel()
				continue
			}
			ch, err := parseChannel(args[1])
			if err != nil {
				fmt.Println(err)
				cancel()
				continue
			}
			if err := client.Unsubscribe(ctx, ch); err != nil {
				fmt.Printf("Unsubscribe failed: %v\n", err)
			} else {
				fmt.Println("Unsubscribed")
			}

		case "publish":
			if len(args) < 3 {
				fmt.Println("Usage: publish <channel> <data>")
				cancel()
				continue
			}
			ch, err := parseChannel(args[1])
			if err != nil {
				fmt.Println(err)
				cancel()
				continue
			}
			if err := client.Publish(ctx, ch, []byte(strings.Join(args[2:], " "))); err != nil {
				fmt.Printf("Publish failed: %v\n", err)
			} else {
				fmt.Println("Published")
			}

		case "addchannel":
			if len(args) < 2 {
				fmt.Println("Usage: addchannel <channel>")
				cancel()
				continue
			}
			ch, err := parseChannel(args[1])
			if err != nil {
				fmt.Println(err)
				cancel()
				continue
			}
			if err := client.AddChannel(ctx, ch); err != nil {
				fmt.Printf("AddChannel failed: %v\n", err)
			} else {
				fmt.Println("Channel added")
			}

		case "removechannel":
			if len(args) < 2 {
				fmt.Println("Usage: removechannel <channel>")
				cancel()
				continue
			}
			ch, err := parseChannel(args[1])
			if err != nil {
				fmt.Println(err)
				cancel()
				continue
			}
			if err := client.RemoveChannel(ctx, ch); err != nil {
				fmt.Printf("RemoveChannel failed: %v\n", err)
			} else {
				fmt.Println("Channel removed")
			}

		case "join":
			if len(args) < 3 {
				fmt.Println("Usage: join <bootstrap-addr> <bootstrap-node-id-hex>")
				cancel()
				continue
			}
			nodeId, err := strconv.ParseUint(args[2], 16, 32)
			if err != nil {
				fmt.Printf("invalid node id %q: %v\n", args[2], err)
				cancel()
				continue
			}
			resp, err := client.JoinRing(ctx, args[1], uint32(nodeId))
			if err != nil {
				fmt.Printf("JoinRing failed: %v\n", err)
			} else if resp.Error != "" {
				fmt.Printf("JoinRing reported an error: %s\n", resp.Error)
			} else {
				fmt.Println("Join dispatched")
			}

		case "status":
			resp, err := client.Status(ctx)
			if err != nil {
				fmt.Printf("Status failed: %v\n", err)
				cancel()
				continue
			}
			printStatus(resp)

		case "use":
			if len(args) < 2 {
				fmt.Println("Usage: use <addr>")
				cancel()
				continue
			}
			newConn, newClient, err := connect(args[1])
			if err != nil {
				fmt.Printf("Failed to connect to %s: %v\n", args[1], err)
				cancel()
				continue
			}
			conn.Close()
			conn = newConn
			client = newClient
			currentAddr = args[1]
			fmt.Printf("Switched connection to %s\n", currentAddr)

		case "exit", "quit":
			fmt.Println("Bye!")
			cancel()
			return

		default:
			fmt.Printf("Unknown command: %s\n", cmd)
		}

		cancel()
	}
}

func connect(addr string) (*grpc.ClientConn, *hostapi.Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return conn, hostapi.NewClient(conn), nil
}

func parseChannel(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid channel %q: %w", s, err)
	}
	return uint32(v), nil
}

func printStatus(resp *hostapi.StatusResponse) {
	fmt.Printf("Self: %08x\n", resp.Self)
	fmt.Printf("Address: %s\n", resp.Address)
	if resp.HasSuccessor {
		fmt.Printf("Successor: %08x\n", resp.Successor)
	} else {
		fmt.Println("Successor: (none)")
	}
	if resp.HasPredecessor {
		fmt.Printf("Predecessor: %08x\n", resp.Predecessor)
	} else {
		fmt.Println("Predecessor: (none)")
	}
	fmt.Printf("Local channels: %v\n", resp.LocalChannels)
	fmt.Printf("Remote channels: %v\n", resp.RemoteChannels)
}
