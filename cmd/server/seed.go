package main

import (
	"github.com/spf13/cobra"

	"github.com/iliyamo/learning-api/internal/repository"
	"github.com/iliyamo/learning-api/internal/service"
	"github.com/iliyamo/learning-api/internal/utils"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the MASTER_ADMIN account and the starter product",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, logger, db, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		s := service.Seeder{
			Users:    repository.NewUserRepo(db),
			Products: repository.NewProductRepo(db),
			Hasher:   utils.NewBcryptHasher(cfg.BcryptCost),
			Log:      logger,
		}
		if _, err := s.EnsureMasterAdmin(ctx, cfg.MasterAdminEmail, cfg.MasterAdminPassword); err != nil {
			return err
		}
		_, err = s.EnsureSampleProduct(ctx)
		return err
	},
}
