// Package process owns creation and termination of command-line agent
// processes. Agents are started detached as leaders of their own process
// group so a single termination signal reaches the helper processes agent
// CLIs spawn. Stdout and stderr are merged into one ordered byte stream by
// handing the same pipe descriptor to both, which keeps interleaving in any
// output log faithful to wall-clock order.
package process
