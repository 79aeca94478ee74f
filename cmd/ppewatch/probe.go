package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-ppewatch/pkg/vision"
)

var probeCmd = &cobra.Command{
	Use:   "probe-bucket <bucket>",
	Short: "Print the region of an S3 bucket and compare it with the provider region",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := vision.NewBuckets(cmd.Context(), cfg.Vision.AWS)
		if err != nil {
			return err
		}

		region, err := b.Region(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		want := cfg.Vision.AWS.Region
		fmt.Printf("Bucket %s is in %s\n", args[0], region)
		if region != want {
			fmt.Printf("Provider region is %s; indexing from this bucket will fail\n", want)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
