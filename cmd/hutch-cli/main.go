// Copyright 2026 Esteban Alvarez. All Rights Reserved.
//
// Created: September 2026
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main is a line-oriented REPL over the hutch wire protocol.
// Commands mirror the wire methods; every server response is echoed as a
// "remote>" line with its raw envelope payload.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"hutch/pkg/client"
)

func main() {
	url := flag.String("url", client.DefaultURL, "hutch server to connect to")
	flag.Parse()

	ctx := context.Background()
	conn, err := client.Dial(ctx, *url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	repl(ctx, conn)
}

func repl(ctx context.Context, conn *client.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		parts := splitCommand(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		command, args := parts[0], parts[1:]
		if command == "quit" || command == "exit" {
			return
		}
		if command == "help" {
			printHelp()
			continue
		}

		raw, err := invoke(ctx, conn, command, args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  error: %v\n", err)
			continue
		}
		if raw == nil {
			fmt.Println("  remote> ok")
			continue
		}
		fmt.Printf("  remote> %s\n", raw)
	}
}

func invoke(ctx context.Context, conn *client.Client, command string, args []string) (json.RawMessage, error) {
	switch command {
	case "save":
		if len(args) != 2 {
			return nil, fmt.Errorf("save(collection, doc)")
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(args[1]), &doc); err != nil {
			return nil, fmt.Errorf("doc must be JSON: %w", err)
		}
		return conn.Call(ctx, "save", args[0], doc)
	case "get":
		if len(args) != 2 {
			return nil, fmt.Errorf("get(collection, docid)")
		}
		return conn.Call(ctx, "get", args[0], args[1])
	case "auth":
		if len(args) != 2 {
			return nil, fmt.Errorf("auth(username, password)")
		}
		return conn.Call(ctx, "auth", args[0], args[1])
	case "create_user":
		if len(args) != 3 {
			return nil, fmt.Errorf("create_user(username, password, roles)")
		}
		return conn.Call(ctx, "create-user", args[0], args[1], strings.Split(args[2], ","))
	case "revoke_user":
		if len(args) != 1 {
			return nil, fmt.Errorf("revoke_user(username)")
		}
		return conn.Call(ctx, "revoke-user", args[0])
	case "list_users":
		return conn.Call(ctx, "list-users")
	default:
		return nil, fmt.Errorf("unknown command %q (try help)", command)
	}
}

func printHelp() {
	for _, line := range []string{
		"help()",
		"quit() / exit()",
		`auth(username, password)`,
		`save(collection, doc)           doc is a JSON object, e.g. save notes '{"id":"doc1"}'`,
		`get(collection, docid)`,
		`create_user(username, password, roles)   roles comma-separated, e.g. read,write`,
		`revoke_user(username)`,
		`list_users()`,
	} {
		fmt.Printf("  %s\n", line)
	}
}

// splitCommand splits on spaces but keeps single-quoted spans intact, so
// JSON documents with spaces survive: save notes '{"id": "doc1"}'.
func splitCommand(line string) []string {
	var parts []string
	var cur strings.Builder
	quoted := false
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '\'':
			quoted = !quoted
		case r == ' ' && !quoted:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return parts
}
