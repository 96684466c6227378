package main

import "mspro-labs/book-buddy/cmd"

func main() {
	cmd.Execute()
}
