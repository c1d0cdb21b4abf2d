package main

import "github.com/cameronsjo/dinghy/internal/cmd"

func main() {
	cmd.Execute()
}
