package main

import "github.com/oshokin/squ-clock/cmd/squ-clock-status/cmd"

func main() {
	cmd.Execute()
}
