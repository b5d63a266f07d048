// Package adapter wraps the external discovery tools netsentry uses to
// find live devices on configured subnets.
//
// # Scanners
//
// ARPScanner shells out to arp-scan for subnets attached to a local
// interface, where layer-2 probing sees real MAC addresses. When arp-scan
// is missing or fails it degrades to reading the kernel ARP table.
//
// NmapScanner performs an nmap ping sweep for routed subnets. MACs are
// usually not visible there, so its observations may carry only an IP.
//
// CompositeScanner routes each subnet to one of the two based on the
// machine's interface addresses.
//
// # Contract
//
// Every scanner honors the context deadline, normalizes MAC formatting to
// the canonical lower-case colon-separated form, and reports failure with
// a *ScanError carrying the subnet and tool. Failures are isolated: the
// reconciler records them per subnet and continues the cycle.
package adapter
