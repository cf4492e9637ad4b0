package facesearch

import (
	"context"
	"errors"

	"eventpilot/internal/cloud"
	"eventpilot/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

const (
	ReasonNoFace        = "no_face_detected"
	ReasonImageTooLarge = "image_too_large"
	ReasonInvalidFormat = "invalid_format"
)

// CompareFacesAPI is the part of the Rekognition client the comparer uses.
type CompareFacesAPI interface {
	CompareFaces(ctx context.Context, in *rekognition.CompareFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.CompareFacesOutput, error)
}

// RekognitionComparer compares faces with AWS Rekognition.
type RekognitionComparer struct {
	Client CompareFacesAPI
}

// NewRekognitionComparer returns nil when Rekognition is switched off.
func NewRekognitionComparer(ctx context.Context, cfg config.AWSConfig) (*RekognitionComparer, error) {
	if !cfg.RekognitionOn {
		return nil, nil
	}
	awsCfg, err := cloud.LoadAWS(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &RekognitionComparer{Client: rekognition.NewFromConfig(awsCfg)}, nil
}

func (c *RekognitionComparer) Compare(ctx context.Context, source, target []byte, threshold float32) (Comparison, error) {
	out, err := c.Client.CompareFaces(ctx, &rekognition.CompareFacesInput{
		SourceImage:         &types.Image{Bytes: source},
		TargetImage:         &types.Image{Bytes: target},
		SimilarityThreshold: aws.Float32(threshold),
	})
	if err != nil {
		if reason := softReason(err); reason != "" {
			return Comparison{Reason: reason}, nil
		}
		return Comparison{}, err
	}
	if len(out.FaceMatches) == 0 {
		return Comparison{}, nil
	}
	return Comparison{Match: true, Similarity: aws.ToFloat32(out.FaceMatches[0].Similarity)}, nil
}

// softReason maps Rekognition errors that concern a single image.
func softReason(err error) string {
	var (
		badParam  *types.InvalidParameterException
		tooLarge  *types.ImageTooLargeException
		badFormat *types.InvalidImageFormatException
	)
	switch {
	case errors.As(err, &badParam):
		return ReasonNoFace
	case errors.As(err, &tooLarge):
		return ReasonImageTooLarge
	case errors.As(err, &badFormat):
		return ReasonInvalidFormat
	}
	return ""
}
