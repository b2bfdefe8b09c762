// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package main

import (
	"context"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	"github.com/relabs-tech/tablegate/core/lambda"
	"github.com/relabs-tech/tablegate/core/logger"
	"github.com/relabs-tech/tablegate/core/service"
)

func main() {
	nillog := logger.Default()
	s, err := service.FromEnv()
	if err != nil {
		nillog.WithError(err).Fatalln("cannot read configuration")
	}
	// metrics are not scraped from lambda functions
	s.Metrics = false
	rt, err := s.Build(context.Background())
	if err != nil {
		nillog.WithError(err).Fatalln("cannot build gateway")
	}
	defer rt.Close()

	awslambda.Start(lambda.New(rt.Gateway).Handle)
}
