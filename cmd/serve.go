package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mgmu/greenlog/internal/app"
	"github.com/mgmu/greenlog/internal/utils"
	"github.com/mgmu/greenlog/internal/web"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the GreenLog web interface",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			env, err := web.New(a.Garden, a.Session, utils.Log)
			if err != nil {
				return err
			}
			srv := &http.Server{
				Addr:              viper.GetString("web.listen"),
				Handler:           web.NewRouter(env),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				utils.Log.WithField("addr", srv.Addr).Info("Starting server")
				err := srv.ListenAndServe()
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8081", "HTTP listen address")
	viper.BindPFlag("web.listen", serveCmd.Flags().Lookup("listen"))
}
