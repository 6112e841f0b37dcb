// Command memctl inspects and edits memkit buffer files.
package main

func main() {
	execute()
}
