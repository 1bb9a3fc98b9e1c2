package main

import "github.com/Ramsey-B/briar/cmd"

func main() {
	cmd.Execute()
}
