package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/mddb"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/mddb/stor"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/mdsync"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/pipeline"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/striping"
	"gorm.io/gorm"
)

var (
	createPolicy   string
	createStripeKB int64
	createWidth    int
	createNodes    string
)

var createCmd = &cobra.Command{
	Use:   "create <file-id>",
	Short: "Record a new striped file in the metadata store",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession()
		defer s.close()

		policy := striping.Policy{
			Kind:       striping.ParseKind(createPolicy),
			StripeSize: createStripeKB * 1024,
			Width:      createWidth,
		}

		f, err := fileid.New(args[0], policy, strings.Split(createNodes, ","))
		if err != nil {
			log.Fatalf("Invalid file: %s", err)
		}

		if _, err := mdsync.CreateFile(s.registry, s.fileStor, f); err != nil {
			log.Fatalf("Unable to create %s: %s", args[0], err)
		}

		fmt.Printf("created %s: %s on %s\n", f.ID, f.Policy, createNodes)
	},
}

var readCmd = &cobra.Command{
	Use:   "read <file-id> <offset> <size>",
	Short: "Read a byte range of a file to stdout",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		offset := mustParseInt(args[1])
		size := mustParseInt(args[2])

		s := openSession()
		defer s.close()

		f, err := mdsync.OpenFile(s.registry, s.fileStor, args[0])
		if err != nil {
			log.Fatalf("Unable to open %s: %s", args[0], err)
		}

		buf := make([]byte, size)
		n, err := s.pipeline.SubmitFileRead(context.Background(), f, offset, buf)
		if err != nil {
			log.Fatalf("Read failed: %s", err)
		}

		_, _ = os.Stdout.Write(buf[:n])
		log.Infof("read %s from %s", humanize.Bytes(uint64(n)), f.ID)
	},
}

var writeCmd = &cobra.Command{
	Use:   "write <file-id> <offset> <local-path>",
	Short: "Write the contents of a local file into a file at offset",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		offset := mustParseInt(args[1])

		data, err := os.ReadFile(args[2])
		if err != nil {
			log.Fatalf("Unable to read %s: %s", args[2], err)
		}

		s := openSession()
		defer s.close()

		f, err := mdsync.OpenFile(s.registry, s.fileStor, args[0])
		if err != nil {
			log.Fatalf("Unable to open %s: %s", args[0], err)
		}

		n, err := s.pipeline.SubmitFileWrite(context.Background(), f, offset, data)
		if err != nil {
			log.Fatalf("Write failed: %s", err)
		}

		if err := s.updater.Flush(); err != nil {
			log.Errorf("Unable to push new size of %s: %s", f.ID, err)
		}

		fmt.Printf("wrote %s to %s, size now %s\n", humanize.Bytes(uint64(n)), f.ID, f.SizeEpoch())
	},
}

// session is what a one-shot command needs: the metadata store and a pipeline to the
// OSDs.
type session struct {
	db       *gorm.DB
	fileStor stor.FileStor
	registry *fileid.Registry
	pipeline *pipeline.Pipeline
	updater  *mdsync.Updater
}

func openSession() *session {
	c := mustLoadConfig()
	db := mddb.MustOpen(c)

	p, err := newPipeline(c)
	if err != nil {
		log.Fatalf("Unable to start pipeline: %s", err)
	}

	s := &session{
		db:       db,
		fileStor: stor.NewGormFileStor(db),
		registry: fileid.NewRegistry(),
		pipeline: p,
	}
	s.updater = mdsync.NewUpdater(s.registry, s.fileStor)

	return s
}

func (s *session) close() {
	s.pipeline.Stop()
	_ = mddb.Close(s.db)
}

func mustParseInt(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		log.Fatalf("Invalid number %q", s)
	}
	return v
}

func init() {
	createCmd.Flags().StringVar(&createPolicy, "policy", striping.RAID0.String(), "striping policy")
	createCmd.Flags().Int64Var(&createStripeKB, "stripe-kb", 128, "stripe size in KB")
	createCmd.Flags().IntVar(&createWidth, "width", 1, "number of OSDs the file is striped over")
	createCmd.Flags().StringVar(&createNodes, "nodes", "", "comma separated OSD addresses, one per slot")
	_ = createCmd.MarkFlagRequired("nodes")

	rootCmd.AddCommand(createCmd, readCmd, writeCmd)
}
