// Command syncd is the background daemon that mirrors local directories to
// remote content-addressed storage.
package main

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exitOnError(err)
	}
}
