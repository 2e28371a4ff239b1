package main

import "github.com/aidyou/llmrouter/cmd"

func main() {
	cmd.Execute()
}
